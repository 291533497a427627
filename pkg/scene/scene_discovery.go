package scene

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnknownScene is returned by Resolve for names that are neither a
// built-in scene nor a readable scene file
var ErrUnknownScene = errors.New("unknown scene")

// SceneInfo represents a discovered scene with its metadata
type SceneInfo struct {
	ID          string `json:"id"`          // Unique identifier, accepted by Resolve
	DisplayName string `json:"displayName"` // UI display name
	Description string `json:"description"` // Optional description
	Type        string `json:"type"`        // "builtin" or "file"
	FilePath    string `json:"filePath"`    // Path to the JSON file (file type only)
}

type builtin struct {
	info  SceneInfo
	build func(width, height int) Description
}

var builtins = []builtin{
	{
		info: SceneInfo{
			ID:          "cornell",
			DisplayName: "Cornell Box",
			Description: "Sphere-walled Cornell box lit by a small ceiling light",
			Type:        "builtin",
		},
		build: CornellDescription,
	},
	{
		info: SceneInfo{
			ID:          "cornell-corner",
			DisplayName: "Cornell Box - Hidden Light",
			Description: "Cornell box lit from a floor corner behind three occluders",
			Type:        "builtin",
		},
		build: CornellCornerDescription,
	},
}

// Builtins returns the scenes compiled into the renderer
func Builtins() []SceneInfo {
	infos := make([]SceneInfo, len(builtins))
	for i, b := range builtins {
		infos[i] = b.info
	}
	return infos
}

// ListSceneFiles scans dir for JSON scene descriptions. A missing directory
// yields an empty list.
func ListSceneFiles(dir string) ([]SceneInfo, error) {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return []SceneInfo{}, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan scenes directory: %w", err)
	}

	scenes := make([]SceneInfo, 0, len(files))
	for _, filePath := range files {
		info, err := ParseSceneMetadata(filePath)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, info)
	}

	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].DisplayName < scenes[j].DisplayName
	})
	return scenes, nil
}

// ParseSceneMetadata reads the name and description of a scene file,
// falling back to the file name
func ParseSceneMetadata(filePath string) (SceneInfo, error) {
	nameWithoutExt := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	info := SceneInfo{
		ID:          filePath,
		DisplayName: titleCase(nameWithoutExt),
		Type:        "file",
		FilePath:    filePath,
	}

	f, err := os.Open(filePath)
	if err != nil {
		return info, fmt.Errorf("open scene: %w", err)
	}
	defer f.Close()

	desc, err := Decode(f)
	if err != nil {
		return info, fmt.Errorf("%s: %w", filePath, err)
	}
	if desc.Name != "" {
		info.DisplayName = desc.Name
	}
	info.Description = desc.Summary
	return info, nil
}

// Resolve builds a built-in scene by ID, or loads a JSON scene file. A
// positive width and height override the resolution of the description.
func Resolve(name string, width, height int) (*Scene, error) {
	desc, err := Describe(name)
	if err != nil {
		return nil, err
	}
	if width > 0 && height > 0 {
		desc.Camera.Width = width
		desc.Camera.Height = height
	}
	return desc.Build()
}

// Describe returns the description of a built-in scene or scene file.
// Built-ins default to 400x400.
func Describe(name string) (Description, error) {
	for _, b := range builtins {
		if b.info.ID == name {
			return b.build(400, 400), nil
		}
	}

	if filepath.Ext(name) != ".json" {
		return Description{}, fmt.Errorf("%w: %q", ErrUnknownScene, name)
	}
	f, err := os.Open(name)
	if err != nil {
		return Description{}, fmt.Errorf("%w: %v", ErrUnknownScene, err)
	}
	defer f.Close()

	desc, err := Decode(f)
	if err != nil {
		return Description{}, fmt.Errorf("%s: %w", name, err)
	}
	return desc, nil
}

// titleCase converts a filename-style string to title case
// e.g., "cornell-empty" -> "Cornell Empty"
func titleCase(s string) string {
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")

	words := strings.Fields(s)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}
