package render

// Program and Texture are GPU object names. Zero is never a valid object
// and unbinds.
type (
	Program uint32
	Texture uint32
)

const (
	VertexShader = `attribute vec4 position;
attribute vec2 texcoord;
varying vec2 texcoordVarying;
void main() {
    gl_Position = position;
    texcoordVarying = texcoord;
}
`
	FragmentShader = `#extension GL_OES_EGL_image_external : require
precision mediump float;
varying vec2 texcoordVarying;
uniform samplerExternalOES texture;
void main() {
    gl_FragColor = texture2D(texture, texcoordVarying);
}
`
)

// ClearColor is the background outside the viewport.
var ClearColor = [4]float32{0.5, 0.5, 1.0, 1.0}

// GPU is the rendering backend. All calls happen on the render goroutine.
type GPU interface {
	CompileProgram(vertexSrc, fragmentSrc string) (Program, error)
	GenExternalTexture() (Texture, error)
	ClearColor(r, g, b, a float32)
	Clear()
	Viewport(x, y, width, height int)
	UseProgram(p Program)
	BindExternalTexture(t Texture)
	DrawTriangleStrip(vertices [4]Vec3, texcoords TextureQuad)
	// Present shows the finished frame.
	Present() error
	// Err returns and clears the first error recorded since the last call.
	Err() error
}

// TextureSource is the capture-backed side of an external texture.
type TextureSource interface {
	UpdateTexImage() error
}
