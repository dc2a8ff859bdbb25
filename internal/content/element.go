package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
)

type ElementType string

const (
	TypeContainer       ElementType = "container"
	TypeText            ElementType = "text"
	TypeImage           ElementType = "image"
	TypeTrueFalse       ElementType = "true-false"
	TypeFillBlanks      ElementType = "fill-blanks"
	TypeImageComparison ElementType = "image-comparison"
	TypeAudioComparison ElementType = "audio-comparison"
	TypeCalculator      ElementType = "calculator"
	TypeConnectionLines ElementType = "connection-lines"
)

// Properties is the per-type property record of an element. The concrete type
// decides the element's type tag.
type Properties interface {
	ElementType() ElementType
}

type ContainerProperties struct {
	Layout          string `json:"layout,omitempty"` // row | column | grid
	Gap             int    `json:"gap,omitempty"`
	Padding         int    `json:"padding,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	BackgroundImage string `json:"backgroundImage,omitempty"`
	BorderRadius    int    `json:"borderRadius,omitempty"`
	Width           string `json:"width,omitempty"`
	Height          string `json:"height,omitempty"`
}

type TextProperties struct {
	Content    string `json:"content"`
	FontSize   int    `json:"fontSize,omitempty"`
	FontWeight string `json:"fontWeight,omitempty"`
	Color      string `json:"color,omitempty"`
	TextAlign  string `json:"textAlign,omitempty"`
}

type ImageProperties struct {
	Src       string `json:"src"`
	Alt       string `json:"alt,omitempty"`
	Width     string `json:"width,omitempty"`
	Height    string `json:"height,omitempty"`
	ObjectFit string `json:"objectFit,omitempty"`
}

type TrueFalseProperties struct {
	Statement  string `json:"statement"`
	Answer     bool   `json:"answer"`
	TrueLabel  string `json:"trueLabel,omitempty"`
	FalseLabel string `json:"falseLabel,omitempty"`
	Feedback   string `json:"feedback,omitempty"`
}

type Blank struct {
	ID            string   `json:"id"`
	Answer        string   `json:"answer"`
	Alternatives  []string `json:"alternatives,omitempty"`
	CaseSensitive bool     `json:"caseSensitive,omitempty"`
}

type FillBlanksProperties struct {
	Text   string  `json:"text"`
	Blanks []Blank `json:"blanks,omitempty"`
}

type ImageComparisonProperties struct {
	BeforeSrc      string `json:"beforeSrc"`
	AfterSrc       string `json:"afterSrc"`
	BeforeLabel    string `json:"beforeLabel,omitempty"`
	AfterLabel     string `json:"afterLabel,omitempty"`
	SliderPosition int    `json:"sliderPosition,omitempty"` // percent
}

type AudioClip struct {
	ID    string `json:"id"`
	Src   string `json:"src"`
	Label string `json:"label,omitempty"`
}

type AudioComparisonProperties struct {
	Prompt        string      `json:"prompt,omitempty"`
	Clips         []AudioClip `json:"clips,omitempty"`
	CorrectClipID string      `json:"correctClipId,omitempty"`
}

type CalculatorProperties struct {
	Mode        string `json:"mode,omitempty"` // basic | scientific
	Precision   int    `json:"precision,omitempty"`
	ShowHistory bool   `json:"showHistory,omitempty"`
}

type ConnectionItem struct {
	ID       string `json:"id"`
	Label    string `json:"label,omitempty"`
	ImageSrc string `json:"imageSrc,omitempty"`
}

type Connection struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type ConnectionLinesProperties struct {
	LeftItems   []ConnectionItem `json:"leftItems,omitempty"`
	RightItems  []ConnectionItem `json:"rightItems,omitempty"`
	Connections []Connection     `json:"connections,omitempty"`
	LineColor   string           `json:"lineColor,omitempty"`
}

// RawProperties keeps the properties of an element type this package does not know.
type RawProperties struct {
	Kind ElementType
	Data json.RawMessage
}

func (ContainerProperties) ElementType() ElementType       { return TypeContainer }
func (TextProperties) ElementType() ElementType            { return TypeText }
func (ImageProperties) ElementType() ElementType           { return TypeImage }
func (TrueFalseProperties) ElementType() ElementType       { return TypeTrueFalse }
func (FillBlanksProperties) ElementType() ElementType      { return TypeFillBlanks }
func (ImageComparisonProperties) ElementType() ElementType { return TypeImageComparison }
func (AudioComparisonProperties) ElementType() ElementType { return TypeAudioComparison }
func (CalculatorProperties) ElementType() ElementType      { return TypeCalculator }
func (ConnectionLinesProperties) ElementType() ElementType { return TypeConnectionLines }
func (p RawProperties) ElementType() ElementType           { return p.Kind }

var propertyDecoders = map[ElementType]func(json.RawMessage) (Properties, error){
	TypeContainer:       decodeAs[ContainerProperties],
	TypeText:            decodeAs[TextProperties],
	TypeImage:           decodeAs[ImageProperties],
	TypeTrueFalse:       decodeAs[TrueFalseProperties],
	TypeFillBlanks:      decodeAs[FillBlanksProperties],
	TypeImageComparison: decodeAs[ImageComparisonProperties],
	TypeAudioComparison: decodeAs[AudioComparisonProperties],
	TypeCalculator:      decodeAs[CalculatorProperties],
	TypeConnectionLines: decodeAs[ConnectionLinesProperties],
}

func decodeAs[T Properties](data json.RawMessage) (Properties, error) {
	var p T
	if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// DecodeProperties decodes the property record for the given element type.
// Unknown types are kept verbatim.
func DecodeProperties(t ElementType, data json.RawMessage) (Properties, error) {
	decode, ok := propertyDecoders[t]
	if !ok {
		var raw json.RawMessage
		if len(data) > 0 {
			raw = append(raw, data...)
		}
		return RawProperties{Kind: t, Data: raw}, nil
	}
	p, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s properties: %w", t, err)
	}
	return p, nil
}

// IsKnownType reports whether t has a typed property record.
func IsKnownType(t ElementType) bool {
	_, ok := propertyDecoders[t]
	return ok
}

// decodeLenient decodes like DecodeProperties but keeps a malformed record of a
// known type verbatim instead of failing. Keys the typed record does not
// declare are returned separately so they survive a re-encode.
func decodeLenient(t ElementType, data json.RawMessage) (Properties, map[string]json.RawMessage) {
	p, err := DecodeProperties(t, data)
	if err != nil {
		return RawProperties{Kind: t, Data: append(json.RawMessage(nil), data...)}, nil
	}
	if _, raw := p.(RawProperties); raw {
		return p, nil
	}
	return p, undeclaredKeys(p, data)
}

func undeclaredKeys(p Properties, data json.RawMessage) map[string]json.RawMessage {
	var in map[string]json.RawMessage
	if err := json.Unmarshal(data, &in); err != nil || len(in) == 0 {
		return nil
	}
	typed, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(typed, &known); err != nil {
		return nil
	}
	var rest map[string]json.RawMessage
	for k, v := range in {
		if _, ok := known[k]; ok {
			continue
		}
		if rest == nil {
			rest = make(map[string]json.RawMessage)
		}
		rest[k] = v
	}
	return rest
}

// IsUntyped reports whether e is of a known type whose properties could not be
// decoded and are carried verbatim.
func (e Element) IsUntyped() bool {
	raw, ok := e.Properties.(RawProperties)
	return ok && IsKnownType(raw.Kind)
}

// Element is one content node. The store copies and relocates elements but never
// looks inside Properties, Children or Extra.
type Element struct {
	ID         string
	Name       string
	Properties Properties
	Children   []Element
	ParentID   string
	Extra      map[string]any

	// property keys the typed record does not declare
	propsExtra map[string]json.RawMessage
}

func (e Element) Type() ElementType {
	if e.Properties == nil {
		return ""
	}
	return e.Properties.ElementType()
}

func (e Element) clone() Element {
	if e.Children != nil {
		children := make([]Element, len(e.Children))
		for i, child := range e.Children {
			children[i] = child.clone()
		}
		e.Children = children
	}
	if e.Extra != nil {
		e.Extra = maps.Clone(e.Extra)
	}
	if e.propsExtra != nil {
		e.propsExtra = maps.Clone(e.propsExtra)
	}
	return e
}

type elementJSON struct {
	ID         string          `json:"id"`
	Type       ElementType     `json:"type"`
	Name       string          `json:"name,omitempty"`
	Properties json.RawMessage `json:"properties,omitempty"`
	Children   []Element       `json:"children,omitempty"`
	ParentID   string          `json:"parentId,omitempty"`
	Extra      map[string]any  `json:"extra,omitempty"`
}

func (e Element) MarshalJSON() ([]byte, error) {
	out := elementJSON{
		ID:       e.ID,
		Type:     e.Type(),
		Name:     e.Name,
		Children: e.Children,
		ParentID: e.ParentID,
		Extra:    e.Extra,
	}
	switch p := e.Properties.(type) {
	case nil:
	case RawProperties:
		out.Properties = p.Data
	default:
		data, err := marshalProperties(p, e.propsExtra)
		if err != nil {
			return nil, err
		}
		out.Properties = data
	}
	return json.Marshal(out)
}

func marshalProperties(p Properties, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

func (e *Element) UnmarshalJSON(data []byte) error {
	var in elementJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	props, extra := decodeLenient(in.Type, in.Properties)
	*e = Element{
		ID:         in.ID,
		Name:       in.Name,
		Properties: props,
		Children:   in.Children,
		ParentID:   in.ParentID,
		Extra:      in.Extra,
		propsExtra: extra,
	}
	return nil
}

// ElementUpdate is a partial update. Nil fields are left untouched; Extra is
// merged key by key.
type ElementUpdate struct {
	Name       *string
	Properties Properties
	Children   *[]Element
	ParentID   *string
	Extra      map[string]any
}

func (u ElementUpdate) apply(e Element) Element {
	if u.Name != nil {
		e.Name = *u.Name
	}
	if u.Properties != nil {
		if e.Type() != u.Properties.ElementType() {
			e.propsExtra = nil
		}
		e.Properties = u.Properties
	}
	if u.Children != nil {
		e.Children = Element{Children: *u.Children}.clone().Children
	}
	if u.ParentID != nil {
		e.ParentID = *u.ParentID
	}
	if len(u.Extra) > 0 {
		if e.Extra == nil {
			e.Extra = make(map[string]any, len(u.Extra))
		}
		maps.Copy(e.Extra, u.Extra)
	}
	return e
}
