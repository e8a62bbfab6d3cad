package relay

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/h2non/filetype"
)

//go:embed scripts/export_glb.py
var exportScript []byte

// ErrEmptyOutput is returned when the converter exits cleanly but writes
// nothing.
var ErrEmptyOutput = errors.New("relay: conversion resulted in empty file")

// ErrNoOutput is returned when the converter exits cleanly without
// creating the output file.
var ErrNoOutput = errors.New("relay: output file not found after conversion")

// ErrNotBlend is returned for uploads that do not look like Blender files.
var ErrNotBlend = errors.New("relay: not a Blender file")

// Converter turns an authoring file into a GLB at out.
type Converter interface {
	Convert(ctx context.Context, in, out string) error
}

// BlenderConverter runs `<Path> -b -P <Script> -- <in> <out>`.
type BlenderConverter struct {
	Path    string
	Script  string
	Timeout time.Duration

	scriptOnce sync.Once
	scriptPath string
	scriptErr  error
}

// NewBlenderConverter returns a converter from cfg.
func NewBlenderConverter(cfg Config) *BlenderConverter {
	return &BlenderConverter{Path: cfg.BlenderPath, Script: cfg.ScriptPath, Timeout: cfg.Timeout}
}

// Convert runs Blender and checks that it produced a non-empty file.
func (b *BlenderConverter) Convert(ctx context.Context, in, out string) error {
	script, err := b.script()
	if err != nil {
		return err
	}
	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, b.Path, "-b", "-P", script, "--", in, out)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second
	log.Printf("relay: converting %s", filepath.Base(in))
	runErr := cmd.Run()
	if s := stdout.String(); s != "" {
		log.Printf("relay: blender output: %s", truncate(s, 500))
	}
	if s := stderr.String(); s != "" {
		log.Printf("relay: blender error log: %s", truncate(s, 2000))
	}
	if runErr != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("relay: blender: %w", ctx.Err())
		}
		return fmt.Errorf("relay: blender: %w", runErr)
	}
	return checkOutput(out)
}

// script returns the configured script path, writing the bundled script to
// a temp file on first use when none is configured.
func (b *BlenderConverter) script() (string, error) {
	if b.Script != "" {
		return b.Script, nil
	}
	b.scriptOnce.Do(func() {
		f, err := os.CreateTemp("", "plaque-export-*.py")
		if err != nil {
			b.scriptErr = fmt.Errorf("relay: write export script: %w", err)
			return
		}
		defer f.Close()
		if _, err := f.Write(exportScript); err != nil {
			b.scriptErr = fmt.Errorf("relay: write export script: %w", err)
			return
		}
		b.scriptPath = f.Name()
	})
	return b.scriptPath, b.scriptErr
}

func checkOutput(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNoOutput
	}
	if err != nil {
		return fmt.Errorf("relay: stat output: %w", err)
	}
	if info.Size() == 0 {
		return ErrEmptyOutput
	}
	log.Printf("relay: GLB created (%.2f KB)", float64(info.Size())/1024)
	return nil
}

// sniffBlend accepts files with the BLENDER header and gzip or zstd
// compressed saves.
func sniffBlend(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return err
	}
	head = head[:n]
	if bytes.HasPrefix(head, []byte("BLENDER")) {
		return nil
	}
	if kind, _ := filetype.Match(head); kind.Extension == "gz" || kind.Extension == "zst" {
		return nil
	}
	return ErrNotBlend
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
