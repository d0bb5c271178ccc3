package extract

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/tidwall/gjson"
	"golang.org/x/xerrors"
)

// Completer is the upstream completion operation the extractor delegates to.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// InvalidResponseError is returned when the completion succeeded but its content is
// not a JSON object. Raw holds the content for server-side logging only.
type InvalidResponseError struct {
	Err error
	Raw string
}

func (e *InvalidResponseError) Error() string {
	return "failed to parse upstream response as JSON: " + e.Err.Error()
}

func (e *InvalidResponseError) Unwrap() error { return e.Err }

// Options tune prompt assembly and response decoding.
type Options struct {
	// IncludeExample appends the worked example to the instructions.
	IncludeExample bool
	// RepairJSON lets almost-JSON content (code fences, trailing commas,
	// single quotes) through by repairing it before decoding.
	RepairJSON bool
}

// Extractor turns free text into a Result by delegating to the upstream model.
// It holds no per-request state and is safe for concurrent use.
type Extractor struct {
	completer Completer
	opts      Options
}

func NewExtractor(completer Completer, opts Options) *Extractor {
	return &Extractor{completer: completer, opts: opts}
}

// Parse builds the prompt for text, makes exactly one completion call and decodes
// the reply. Errors from the completer are returned unchanged.
func (e *Extractor) Parse(ctx context.Context, text string) (Result, error) {
	content, err := e.completer.Complete(ctx, systemPrompt, BuildPrompt(text, e.opts.IncludeExample))
	if err != nil {
		return nil, err
	}
	return e.Decode(content)
}

// Decode parses completion content into a Result. Nothing but well-formedness is
// checked: whatever JSON object the model returned is passed through.
func (e *Extractor) Decode(content string) (Result, error) {
	body := strings.TrimSpace(content)

	result, err := decodeObject(body)
	if err != nil && e.opts.RepairJSON {
		if repaired, rerr := jsonrepair.RepairJSON(body); rerr == nil {
			if r, derr := decodeObject(repaired); derr == nil {
				return r, nil
			}
		}
	}
	if err != nil {
		return nil, &InvalidResponseError{Err: err, Raw: content}
	}
	return result, nil
}

func decodeObject(body string) (Result, error) {
	if body == "" {
		return nil, xerrors.New("empty response content")
	}

	if !gjson.Parse(body).IsObject() {
		return nil, xerrors.Errorf("expected a JSON object, got %s", kindOf(body))
	}

	dec := json.NewDecoder(strings.NewReader(body))
	// Keep numbers exactly as the model wrote them.
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, xerrors.New("unexpected data after top-level value")
	}
	return obj, nil
}

func kindOf(body string) string {
	res := gjson.Parse(body)
	if res.IsArray() {
		return "array"
	}
	return strings.ToLower(res.Type.String())
}
