package prompt

import (
	"fmt"
	"strings"

	"menagerie/pkg/model"
)

// Assembler builds prompts from character personas and stored context.
type Assembler struct {
	prompts Renderer
}

func NewAssembler(prompts Renderer) *Assembler {
	return &Assembler{prompts: prompts}
}

// ForReply builds the prompt for a character's direct-message reply.
// History is expected in chronological order, newest last.
func (a *Assembler) ForReply(ch *model.Character, user *model.User, history []*model.Message) (string, error) {
	pd := a.newData(ch)
	pd["UserName"] = userName(user)
	pd["Transcript"] = a.formatTranscript(ch, user, history)
	return a.prompts.Render(TmplReply, pd)
}

// ForVariation builds the prompt for an alternative take on an existing reply.
// The history must end with the message being varied.
func (a *Assembler) ForVariation(ch *model.Character, user *model.User, history []*model.Message, previous []*model.MessageVariation) (string, error) {
	pd := a.newData(ch)
	pd["UserName"] = userName(user)

	// Context is everything before the message being varied.
	if len(history) > 0 {
		pd["Transcript"] = a.formatTranscript(ch, user, history[:len(history)-1])
	} else {
		pd["Transcript"] = ""
	}

	var takes []string
	for _, v := range previous {
		takes = append(takes, v.Content)
	}
	pd["PreviousTakes"] = takes
	return a.prompts.Render(TmplVariation, pd)
}

// ForPost builds the prompt for an autonomous feed post.
func (a *Assembler) ForPost(ch *model.Character, recent []*model.Post) (string, error) {
	pd := a.newData(ch)
	pd["RecentPosts"] = a.formatRecentPosts(ch, recent)
	return a.prompts.Render(TmplPost, pd)
}

// ForImage builds the image-generation prompt accompanying a post.
func (a *Assembler) ForImage(ch *model.Character, caption string) (string, error) {
	pd := a.newData(ch)
	pd["Caption"] = caption
	return a.prompts.Render(TmplImage, pd)
}

// ForComment builds the prompt for a comment on another character's post.
func (a *Assembler) ForComment(ch *model.Character, post *model.Post, author *model.Character, existing []*model.Comment) (string, error) {
	pd := a.newData(ch)
	pd["PostContent"] = post.Content
	pd["PostAuthor"] = author.DisplayName()
	pd["ExistingComments"] = len(existing)
	return a.prompts.Render(TmplComment, pd)
}

func (a *Assembler) newData(ch *model.Character) Data {
	pd := make(Data)
	pd["CharacterName"] = ch.DisplayName()
	pd["Handle"] = ch.Handle
	pd["Persona"] = ch.Persona
	pd["PostStyle"] = ch.PostStyle
	return pd
}

func (a *Assembler) formatTranscript(ch *model.Character, user *model.User, history []*model.Message) string {
	var sb strings.Builder
	for _, m := range history {
		speaker := userName(user)
		if m.SenderType == model.SenderCharacter {
			speaker = ch.DisplayName()
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", speaker, m.Content))
	}
	return sb.String()
}

func (a *Assembler) formatRecentPosts(ch *model.Character, recent []*model.Post) string {
	var sb strings.Builder
	for _, p := range recent {
		if p.CharacterID != ch.ID {
			continue
		}
		sb.WriteString(fmt.Sprintf("* %s\n", p.Content))
	}
	return sb.String()
}

func userName(u *model.User) string {
	if u != nil && u.Name != "" {
		return u.Name
	}
	return "User"
}
