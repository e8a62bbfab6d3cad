// Package plaque composes editable signage templates on 3D models for
// [Ebitengine].
//
// A template pairs a glTF model with image overlays, text labels, per-mesh
// color overrides and a background color. The package turns that data into
// a scene: it rasterizes text and rounded masks into cached textures,
// restyles imported materials into an acrylic look, keeps overlay planes in
// step with the template, lets users pick and recolor meshes, and exports
// high-resolution captures.
//
// # Quick start
//
// The simplest way to get started is [Run], which creates a window and game
// loop for a scene:
//
//	scene := plaque.NewScene(plaque.Rect{Width: 1280, Height: 720})
//	editor := plaque.NewEditor(scene, plaque.EditorOptions{Store: store})
//	editor.LoadTemplate(ctx, id)
//	plaque.Run(scene, plaque.RunConfig{Title: "Sign", Picker: editor.Picker()})
//
// For full control, implement [ebiten.Game] yourself and call
// [Scene.ProcessEbitenInput], [Scene.Update] and [Scene.Draw] directly.
//
// # Scene graph
//
// Every element is a [Node]. The scene owns a fixed layout: a model layer
// holding the imported model, which is pickable, and an overlay layer
// holding image and text planes, which is not. [ModelLoader] builds model
// trees from glTF or GLB files; [Composer] creates, updates and disposes
// overlay planes as the overlay lists change.
//
// # Editing
//
// [Editor] is one editing session against a [TemplateStore]. It applies
// overlay edits, color commits from the [ColorPicker] and background
// changes, tracks unsaved edits, and autosaves. [Exporter] runs the
// cancelable capture sequence whose progress is published on
// [EditorState].
//
// The store and relay subpackages provide the HTTP backend: template
// persistence and conversion of authoring files into GLB models.
//
// [Ebitengine]: https://ebitengine.org
package plaque
