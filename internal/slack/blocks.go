package slack

// Block Kit payloads. Block is a single struct covering the block types this
// service emits; omitempty keeps each serialized block to its own fields.
type Block struct {
	Type     string   `json:"type"`
	BlockID  string   `json:"block_id,omitempty"`
	Text     *Text    `json:"text,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	AltText  string   `json:"alt_text,omitempty"`
	Label    *Text    `json:"label,omitempty"`
	Element  *Element `json:"element,omitempty"`
}

// Text is a plain_text or mrkdwn text object.
type Text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// Element is a block element; this service only uses static selects.
type Element struct {
	Type        string   `json:"type"`
	ActionID    string   `json:"action_id,omitempty"`
	Placeholder *Text    `json:"placeholder,omitempty"`
	Options     []Option `json:"options,omitempty"`

	// InitialOption preselects a value when editing an existing
	// configuration. nil means the field is absent from the payload.
	InitialOption *Option `json:"initial_option,omitempty"`
}

// Option is one choice in a static select.
type Option struct {
	Text  Text   `json:"text"`
	Value string `json:"value"`
}

// View is a modal surface.
type View struct {
	Type            string  `json:"type"`
	CallbackID      string  `json:"callback_id,omitempty"`
	Title           *Text   `json:"title,omitempty"`
	Submit          *Text   `json:"submit,omitempty"`
	Close           *Text   `json:"close,omitempty"`
	PrivateMetadata string  `json:"private_metadata,omitempty"`
	Blocks          []Block `json:"blocks"`
}

// PlainText builds a plain_text object with emoji rendering enabled.
func PlainText(text string) *Text {
	return &Text{Type: "plain_text", Text: text, Emoji: true}
}

// Mrkdwn builds a mrkdwn text object.
func Mrkdwn(text string) *Text {
	return &Text{Type: "mrkdwn", Text: text}
}

// HeaderBlock builds a header block.
func HeaderBlock(text string) Block {
	return Block{Type: "header", Text: PlainText(text)}
}

// DividerBlock builds a divider block.
func DividerBlock() Block {
	return Block{Type: "divider"}
}

// ImageBlock builds an image block from a rendered chart URL.
func ImageBlock(imageURL, altText string) Block {
	return Block{Type: "image", ImageURL: imageURL, AltText: altText}
}

// SectionBlock builds a mrkdwn section block.
func SectionBlock(text string) Block {
	return Block{Type: "section", Text: Mrkdwn(text)}
}

// InputBlock builds an input block wrapping a single element.
func InputBlock(blockID, label string, element Element) Block {
	return Block{Type: "input", BlockID: blockID, Label: PlainText(label), Element: &element}
}

// SelectOption builds a static-select option.
func SelectOption(label, value string) Option {
	return Option{Text: Text{Type: "plain_text", Text: label}, Value: value}
}
