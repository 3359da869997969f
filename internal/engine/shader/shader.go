// Package shader provides the GLSL sources of the renderer pipelines.
//
// Sources are embedded in the binary and can be overridden file by file from
// a directory on disk, which is what hot reload watches.
package shader

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/internal/logger"
)

//go:embed glsl
var embedded embed.FS

const includeDirective = "#include"

// Library resolves shader names to sources.
type Library struct {
	dir string
	log *zap.Logger
}

// NewLibrary creates a library that prefers files in dir over the embedded
// sources. An empty dir uses the embedded sources only.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir, log: logger.Named("shader")}
}

// Dir returns the override directory.
func (l *Library) Dir() string { return l.dir }

// StageOf returns the shader stage of a source file from its extension.
func StageOf(name string) (gpu.Stage, error) {
	switch path.Ext(name) {
	case ".vert":
		return gpu.StVertex, nil
	case ".tesc":
		return gpu.StTessControl, nil
	case ".tese":
		return gpu.StTessEval, nil
	case ".geom":
		return gpu.StGeometry, nil
	case ".frag":
		return gpu.StFragment, nil
	case ".comp":
		return gpu.StCompute, nil
	}
	return 0, fmt.Errorf("shader %q: unknown stage extension", name)
}

// Load returns the named shader with its includes expanded.
func (l *Library) Load(name string) (gpu.Shader, error) {
	stage, err := StageOf(name)
	if err != nil {
		return gpu.Shader{}, err
	}
	src, err := l.expand(name, map[string]bool{})
	if err != nil {
		return gpu.Shader{}, err
	}
	return gpu.Shader{Stage: stage, Name: name, Source: src}, nil
}

// MustLoad is Load for names known to be embedded.
func (l *Library) MustLoad(name string) gpu.Shader {
	s, err := l.Load(name)
	if err != nil {
		panic(err)
	}
	return s
}

func (l *Library) read(name string) ([]byte, error) {
	if l.dir != "" {
		b, err := os.ReadFile(filepath.Join(l.dir, filepath.FromSlash(name)))
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	b, err := embedded.ReadFile(path.Join("glsl", name))
	if err != nil {
		return nil, fmt.Errorf("shader %q: %w", name, err)
	}
	return b, nil
}

// expand inlines #include "file" lines. Each file is included at most once.
func (l *Library) expand(name string, seen map[string]bool) ([]byte, error) {
	if seen[name] {
		return nil, nil
	}
	seen[name] = true
	src, err := l.read(name)
	if err != nil {
		return nil, err
	}
	if !bytes.Contains(src, []byte(includeDirective)) {
		return src, nil
	}

	var out bytes.Buffer
	for i, line := range strings.Split(string(src), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, includeDirective) {
			out.WriteString(line)
			out.WriteByte('\n')
			continue
		}
		inc := strings.Trim(strings.TrimSpace(strings.TrimPrefix(trimmed, includeDirective)), `"<>`)
		if inc == "" {
			return nil, fmt.Errorf("shader %q line %d: empty include", name, i+1)
		}
		body, err := l.expand(inc, seen)
		if err != nil {
			return nil, fmt.Errorf("shader %q line %d: %w", name, i+1, err)
		}
		out.Write(body)
	}
	return out.Bytes(), nil
}

// Names returns the embedded shader names, sorted.
func Names() []string {
	var names []string
	fs.WalkDir(embedded, "glsl", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if _, err := StageOf(p); err == nil {
			names = append(names, strings.TrimPrefix(p, "glsl/"))
		}
		return nil
	})
	sort.Strings(names)
	return names
}
