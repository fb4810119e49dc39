package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/evalwatch/internal/form"
	"github.com/five82/evalwatch/internal/lmeval"
)

// Form fields in focus order.
const (
	fieldName = iota
	fieldResource
	fieldModel
	fieldModelType
	fieldURL
	fieldTokenizer
	fieldTokenized
	fieldTasks
	fieldRemoteCode
	fieldOnline
	fieldBatchSize
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldName:       "Name",
	fieldResource:   "Resource name",
	fieldModel:      "Model",
	fieldModelType:  "Model type",
	fieldURL:        "Model URL",
	fieldTokenizer:  "Tokenizer",
	fieldTokenized:  "Tokenized",
	fieldTasks:      "Tasks",
	fieldRemoteCode: "Remote code",
	fieldOnline:     "Online access",
	fieldBatchSize:  "Batch size",
}

// createForm is the modal for starting a new evaluation. Validation runs on
// every change so the footer always says what is still missing.
type createForm struct {
	ctx       context.Context
	client    lmeval.Fetcher
	namespace string

	inputs map[int]*textinput.Model
	focus  int

	models       []lmeval.ModelOption
	modelIdx     int // -1 until a model is picked
	modelsErr    error
	modelsLoaded bool
	typeIdx      int

	data form.Data
	name form.NameField

	submitting bool
	err        error
}

func newCreateForm(ctx context.Context, client lmeval.Fetcher, namespace string) *createForm {
	f := &createForm{
		ctx:       ctx,
		client:    client,
		namespace: namespace,
		inputs:    make(map[int]*textinput.Model),
		modelIdx:  -1,
		data:      form.NewData(),
		name:      form.NewNameField(""),
	}
	placeholders := map[int]string{
		fieldName:      "e.g. Llama nightly",
		fieldResource:  "derived from name",
		fieldURL:       "filled in from the model",
		fieldTokenizer: "e.g. meta-llama/Llama-2-7b-chat-hf",
		fieldTasks:     "e.g. hellaswag, arc_easy",
		fieldBatchSize: "optional",
	}
	for field, placeholder := range placeholders {
		in := textinput.New()
		in.Placeholder = placeholder
		in.CharLimit = 256
		in.Width = 40
		f.inputs[field] = &in
	}
	f.data = form.SelectModelType(f.data, form.ModelTypes[0].Key)
	f.inputs[fieldName].Focus()
	return f
}

// Init loads the deployed models for the namespace.
func (f *createForm) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, loadModelsCmd(f.ctx, f.client, f.namespace))
}

func (f *createForm) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case modelsMsg:
		f.modelsLoaded = true
		f.models = msg.models
		f.modelsErr = msg.err
		return f, nil, false

	case createdMsg:
		// Only failures reach the form; success closes it from the dashboard.
		f.submitting = false
		f.err = msg.err
		return f, nil, false

	case tea.KeyMsg:
		return f.handleKey(msg, keys)
	}
	return f, nil, false
}

func (f *createForm) handleKey(msg tea.KeyMsg, keys keyMap) (Modal, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, keys.Escape):
		return f, nil, true

	case key.Matches(msg, keys.Confirm):
		if f.submitting || !f.Submittable() {
			return f, nil, false
		}
		f.submitting = true
		f.err = nil
		return f, createCmd(f.ctx, f.client, f.namespace, f.Request()), false

	case key.Matches(msg, keys.Next):
		return f, f.setFocus(f.focus + 1), false

	case key.Matches(msg, keys.Prev):
		return f, f.setFocus(f.focus - 1), false
	}

	switch f.focus {
	case fieldModel, fieldModelType:
		switch {
		case key.Matches(msg, keys.Left):
			f.cycle(-1)
		case key.Matches(msg, keys.Right), key.Matches(msg, keys.Toggle):
			f.cycle(1)
		}
		return f, nil, false

	case fieldTokenized, fieldRemoteCode, fieldOnline:
		if key.Matches(msg, keys.Toggle) || key.Matches(msg, keys.Left) || key.Matches(msg, keys.Right) {
			f.toggle()
		}
		return f, nil, false
	}

	in, ok := f.inputs[f.focus]
	if !ok {
		return f, nil, false
	}
	updated, cmd := in.Update(msg)
	*in = updated
	f.sync()
	return f, cmd, false
}

func (f *createForm) setFocus(field int) tea.Cmd {
	f.focus = (field%fieldCount + fieldCount) % fieldCount
	var cmd tea.Cmd
	for i, in := range f.inputs {
		if i == f.focus {
			cmd = in.Focus()
		} else {
			in.Blur()
		}
	}
	return cmd
}

// cycle moves the focused selector through its options.
func (f *createForm) cycle(delta int) {
	switch f.focus {
	case fieldModel:
		if len(f.models) == 0 {
			return
		}
		if f.modelIdx < 0 {
			f.modelIdx = 0
			if delta < 0 {
				f.modelIdx = len(f.models) - 1
			}
		} else {
			f.modelIdx = ((f.modelIdx+delta)%len(f.models) + len(f.models)) % len(f.models)
		}
		f.data = form.SelectModel(f.data, f.models[f.modelIdx].Value, f.models)
		f.inputs[fieldURL].SetValue(f.data.Model.URL)
	case fieldModelType:
		n := len(form.ModelTypes)
		f.typeIdx = ((f.typeIdx+delta)%n + n) % n
		f.data = form.SelectModelType(f.data, form.ModelTypes[f.typeIdx].Key)
		f.inputs[fieldURL].SetValue(f.data.Model.URL)
	}
	f.sync()
}

func (f *createForm) toggle() {
	switch f.focus {
	case fieldTokenized:
		if f.data.Model.TokenizedRequest == "True" {
			f.data.Model.TokenizedRequest = "False"
		} else {
			f.data.Model.TokenizedRequest = "True"
		}
	case fieldRemoteCode:
		f.data.AllowRemoteCode = !f.data.AllowRemoteCode
	case fieldOnline:
		f.data.AllowOnline = !f.data.AllowOnline
	}
}

// sync copies the text inputs into the form data and name field.
func (f *createForm) sync() {
	f.data.EvaluationName = strings.TrimSpace(f.inputs[fieldName].Value())
	f.name.SetDisplay(f.data.EvaluationName)
	f.name.SetValue(strings.TrimSpace(f.inputs[fieldResource].Value()))
	f.data.Model.URL = strings.TrimSpace(f.inputs[fieldURL].Value())
	f.data.Model.Tokenizer = strings.TrimSpace(f.inputs[fieldTokenizer].Value())
	f.data.Tasks = form.ParseTasks(f.inputs[fieldTasks].Value())
	f.data.BatchSize = strings.TrimSpace(f.inputs[fieldBatchSize].Value())
}

// Submittable reports whether the form can be sent.
func (f *createForm) Submittable() bool {
	return form.IsSubmittable(f.data, f.name)
}

// Request builds the create request from the current inputs.
func (f *createForm) Request() lmeval.CreateRequest {
	return form.BuildCreateRequest(f.data, f.name)
}

func (f *createForm) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder

	b.WriteString(styles.Text.Bold(true).Render("New evaluation in " + f.namespace))
	b.WriteString("\n\n")

	labelStyle := lipgloss.NewStyle().Width(15).Foreground(lipgloss.Color(theme.Muted))
	focusLabel := labelStyle.Foreground(lipgloss.Color(theme.Accent)).Bold(true)

	for field := 0; field < fieldCount; field++ {
		label := labelStyle
		if field == f.focus {
			label = focusLabel
		}
		b.WriteString(label.Render(fieldLabels[field]))
		b.WriteString(f.fieldValue(field, styles))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch {
	case f.submitting:
		b.WriteString(styles.WarningText.Render("Creating..."))
	case f.err != nil:
		b.WriteString(styles.DangerText.Render(truncate("Create failed: "+errorText(f.err), 70)))
	case f.Submittable():
		b.WriteString(styles.SuccessText.Render("Ready: press enter to create"))
	default:
		b.WriteString(styles.WarningText.Render(truncate("Missing: "+strings.Join(form.Missing(f.data, f.name), ", "), 70)))
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("tab/shift+tab move  left/right choose  space toggle  esc cancel"))

	return placeModal(theme, width, height, theme.Accent, 72, b.String())
}

func (f *createForm) fieldValue(field int, styles Styles) string {
	switch field {
	case fieldResource:
		in := f.inputs[field]
		if in.Value() == "" && f.name.Value != "" && field != f.focus {
			return styles.FaintText.Render(f.name.Value)
		}
		return in.View()
	case fieldModel:
		switch {
		case f.modelsErr != nil:
			return styles.DangerText.Render("unable to load models")
		case !f.modelsLoaded:
			return styles.MutedText.Render("loading...")
		case len(f.models) == 0:
			return styles.MutedText.Render("no deployed models")
		case f.modelIdx < 0:
			return styles.MutedText.Render(fmt.Sprintf("< choose one of %d >", len(f.models)))
		}
		return styles.Text.Render("< " + f.models[f.modelIdx].Label + " >")
	case fieldModelType:
		return styles.Text.Render("< " + form.ModelTypes[f.typeIdx].Label + " >")
	case fieldTokenized:
		return checkbox(f.data.Model.TokenizedRequest == "True", styles)
	case fieldRemoteCode:
		return checkbox(f.data.AllowRemoteCode, styles)
	case fieldOnline:
		return checkbox(f.data.AllowOnline, styles)
	}
	return f.inputs[field].View()
}

func checkbox(on bool, styles Styles) string {
	if on {
		return styles.AccentText.Render("[x]")
	}
	return styles.MutedText.Render("[ ]")
}
