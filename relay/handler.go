package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const maxUploadBytes = 512 << 20

// Module serves the upload route.
type Module struct {
	cfg       Config
	dir       string
	converter Converter
	publisher Publisher
	now       func() time.Time
}

// NewModule prepares the upload directory. A nil publisher serves models
// from that directory.
func NewModule(cfg Config, conv Converter, pub Publisher) (*Module, error) {
	if cfg.UploadDir == "" {
		cfg.UploadDir = DefaultConfig().UploadDir
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultConfig().Extensions
	}
	dir, err := filepath.Abs(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("relay: resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("relay: ensure upload dir: %w", err)
	}
	if pub == nil {
		pub = LocalPublisher{BaseURL: cfg.PublicURL}
	}
	return &Module{cfg: cfg, dir: dir, converter: conv, publisher: pub, now: time.Now}, nil
}

// RegisterRoutes builds a relay from the environment and mounts it.
func RegisterRoutes(router gin.IRouter) (*Module, error) {
	cfg := ConfigFromEnv()
	var pub Publisher
	mp, err := NewMinioPublisherFromEnv(context.Background())
	if err != nil {
		return nil, err
	}
	if mp != nil {
		pub = mp
	}
	m, err := NewModule(cfg, NewBlenderConverter(cfg), pub)
	if err != nil {
		return nil, err
	}
	m.Register(router)
	return m, nil
}

// Register mounts POST /upload and, for local publishing, the /uploads
// file route.
func (m *Module) Register(router gin.IRouter) {
	router.POST("/upload", m.handleUpload)
	if _, local := m.publisher.(LocalPublisher); local {
		router.Static("/uploads", m.dir)
	}
}

func (m *Module) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !m.cfg.accepts(ext) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Please upload a %s file", strings.Join(m.cfg.Extensions, " or "))})
		return
	}

	base := m.uploadName()
	input := filepath.Join(m.dir, base+ext)
	if err := c.SaveUploadedFile(header, input); err != nil {
		log.Printf("relay: save upload: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload."})
		return
	}
	if ext == ".blend" {
		if err := sniffBlend(input); err != nil {
			_ = os.Remove(input)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Uploaded file is not a Blender file."})
			return
		}
	}

	log.Printf("relay: processing %s", header.Filename)
	outName := base + ".glb"
	output := filepath.Join(m.dir, outName)
	if err := m.converter.Convert(c.Request.Context(), input, output); err != nil {
		log.Printf("relay: conversion failed: %v", err)
		switch {
		case errors.Is(err, ErrEmptyOutput):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Conversion resulted in empty file."})
		case errors.Is(err, ErrNoOutput):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Output file not found after conversion."})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Model conversion failed.",
				"details": "Is Blender installed and on PATH? Or set BLENDER_PATH.",
			})
		}
		return
	}

	url, err := m.publisher.Publish(c.Request.Context(), output, outName)
	if err != nil {
		log.Printf("relay: publish failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to publish converted model."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversion successful", "url": url})
}

// uploadName returns input-<unix millis>-<random>.
func (m *Module) uploadName() string {
	return fmt.Sprintf("input-%d-%d", m.now().UnixMilli(), rand.IntN(1e9))
}
