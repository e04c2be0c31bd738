package prompt

// Data represents the gathered context for an AI prompt.
type Data map[string]any

// Renderer renders a named template with data.
type Renderer interface {
	Render(name string, data any) (string, error)
}

// Template names used by the assembler.
const (
	TmplReply     = "chat/reply.tmpl"
	TmplVariation = "chat/variation.tmpl"
	TmplPost      = "feed/post.tmpl"
	TmplImage     = "feed/image.tmpl"
	TmplComment   = "feed/comment.tmpl"
)
