package glgpu

import (
	"fmt"

	"github.com/go-gl/gl/v4.6-core/gl"

	"github.com/Faultbox/vigil/internal/engine/gpu"
)

// linkProgram compiles every stage and links them into a program.
func linkProgram(name string, shaders []gpu.Shader) (uint32, error) {
	if len(shaders) == 0 {
		return 0, fmt.Errorf("program %q: no shaders", name)
	}
	ids := make([]uint32, 0, len(shaders))
	defer func() {
		for _, id := range ids {
			gl.DeleteShader(id)
		}
	}()
	for _, s := range shaders {
		id, err := compileShader(s)
		if err != nil {
			return 0, fmt.Errorf("program %q: %w", name, err)
		}
		ids = append(ids, id)
	}

	program := gl.CreateProgram()
	for _, id := range ids {
		gl.AttachShader(program, id)
	}
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetProgramInfoLog(program, logLen, nil, &log[0])
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("program %q: link: %s", name, string(log))
	}
	for _, id := range ids {
		gl.DetachShader(program, id)
	}
	return program, nil
}

// compileShader compiles a single stage.
func compileShader(s gpu.Shader) (uint32, error) {
	typ, err := shaderType(s.Stage)
	if err != nil {
		return 0, err
	}
	shader := gl.CreateShader(typ)
	csource, free := gl.Strs(string(s.Source) + "\x00")
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetShaderInfoLog(shader, logLen, nil, &log[0])
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("%s: %s", s.Name, string(log))
	}
	return shader, nil
}
