// Package message renders the text of posts and replies from templates.
package message

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"text/template"
)

// Template names.
const (
	Post             = "post"
	Added            = "added"
	AlreadyPublished = "already_published"
	Show             = "show"
	ShowFailed       = "show_failed"
)

// ErrNoGreetings is returned by New when no greeting template is configured.
var ErrNoGreetings = errors.New("at least one greeting is required")

// Data is available to every template.
type Data struct {
	Title    string
	Key      string
	InfoURL  string
	Greeting string
}

// Templates is the raw template text for each message.
type Templates struct {
	Greetings        []string
	Post             string
	Added            string
	AlreadyPublished string
	Show             string
	ShowFailed       string
}

// Renderer executes the parsed message templates.
type Renderer struct {
	greetings []*template.Template
	messages  map[string]*template.Template
	pick      func(n int) int
}

// New parses tmpls. pick chooses a greeting index in [0, n); nil picks uniformly at random.
func New(tmpls Templates, pick func(n int) int) (*Renderer, error) {
	if len(tmpls.Greetings) == 0 {
		return nil, ErrNoGreetings
	}
	if pick == nil {
		pick = rand.IntN
	}

	r := &Renderer{
		messages: make(map[string]*template.Template),
		pick:     pick,
	}
	for i, g := range tmpls.Greetings {
		t, err := template.New(fmt.Sprintf("greeting_%d", i)).Option("missingkey=error").Parse(g)
		if err != nil {
			return nil, fmt.Errorf("failed to parse greeting %d: %w", i, err)
		}
		r.greetings = append(r.greetings, t)
	}

	for name, text := range map[string]string{
		Post:             tmpls.Post,
		Added:            tmpls.Added,
		AlreadyPublished: tmpls.AlreadyPublished,
		Show:             tmpls.Show,
		ShowFailed:       tmpls.ShowFailed,
	} {
		t, err := template.New(name).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		r.messages[name] = t
	}
	return r, nil
}

// Greeting renders a randomly chosen greeting.
func (r *Renderer) Greeting(data Data) (string, error) {
	t := r.greetings[r.pick(len(r.greetings))]
	return execute(t, data)
}

// Render executes the named template. For Post a greeting is chosen and
// exposed as .Greeting first.
func (r *Renderer) Render(name string, data Data) (string, error) {
	t, ok := r.messages[name]
	if !ok {
		return "", fmt.Errorf("unknown message template %q", name)
	}
	if name == Post && data.Greeting == "" {
		g, err := r.Greeting(data)
		if err != nil {
			return "", err
		}
		data.Greeting = g
	}
	return execute(t, data)
}

func execute(t *template.Template, data Data) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
