package template

import (
	"sort"
	"strings"

	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/core/sequence"
)

// 弧灯
var ArcLamps = []string{"argon", "neon", "krypton", "hgar"}

type Field struct {
	Key     string `json:"key"`
	Default string `json:"default"`
	Option  bool   `json:"option"`
}

// Template composes the command line of one kind of sequence from a head
// and a list of key=value fields.
type Template struct {
	SeqType string  `json:"seq_type"`
	Head    string  `json:"head"`
	Fields  []Field `json:"fields"`
}

type builder struct {
	t *Template
}

func newTemplate(seqType, head string) *builder {
	return &builder{t: &Template{SeqType: seqType, Head: head}}
}

func (b *builder) field(key, def string) *builder {
	b.t.Fields = append(b.t.Fields, Field{Key: key, Default: def})
	return b
}

// lampExptime adds the shutter driven exptime followed by one field per lamp.
func (b *builder) lampExptime(lamps ...string) *builder {
	b.field("exptime", "15.0")
	for _, l := range lamps {
		b.field(l, "")
	}
	return b
}

func (b *builder) options(keys ...string) *builder {
	for _, k := range keys {
		b.t.Fields = append(b.t.Fields, Field{Key: k, Option: true})
	}
	return b
}

func (b *builder) set(key, def string) *builder {
	for i := range b.t.Fields {
		if b.t.Fields[i].Key == key {
			b.t.Fields[i].Default = def
		}
	}
	return b
}

var (
	lampOptions = []string{"exptime", "argon", "neon", "krypton", "hgar"}
	lampSwitch  = []string{"switchOn", "warmingTime", "switchOff", "head", "tail"}

	registry = map[string]*Template{}
)

func register(b *builder) {
	registry[b.t.SeqType] = b.t
}

func init() {
	register(newTemplate("masterBiases", "iic masterBiases").
		field("duplicate", "15").options("cam"))
	register(newTemplate("masterDarks", "iic masterDarks").
		field("exptime", "300").field("duplicate", "15").options("cam"))
	register(newTemplate("ditheredFlats", "iic ditheredFlats").
		field("pixelRange", "-6,6,0.3").
		options("exptime", "halogen", "duplicate", "cam", "warmingTime", "switchOff").
		set("switchOff", "False"))
	register(newTemplate("scienceObject", "iic scienceObject").
		field("exptime", "15").options("duplicate", "cam"))
	register(newTemplate("scienceArc", "iic scienceArc").
		lampExptime(ArcLamps...).
		options("duplicate", "cam", "switchOn", "warmingTime", "switchOff"))
	register(newTemplate("scienceTrace", "iic scienceTrace").
		options("exptime", "halogen", "duplicate", "cam", "warmingTime", "switchOff").
		set("switchOff", "False"))
	register(newTemplate("biases", "iic bias").
		options("duplicate", "cam", "head", "tail"))
	register(newTemplate("darks", "iic dark").
		field("exptime", "60").options("duplicate", "cam", "head", "tail"))
	register(newTemplate("arcs", "iic expose arc").
		options(lampOptions...).options("cam").options(lampSwitch...))
	register(newTemplate("flats", "iic expose flat").
		options("exptime", "halogen", "duplicate", "cam", "warmingTime", "switchOff", "head", "tail").
		set("switchOff", "False"))
	register(newTemplate("slitThroughFocus", "iic slit throughfocus").
		field("position", "-5,5,11").
		options(lampOptions...).options("duplicate", "cam").options(lampSwitch...))
	register(newTemplate("detThroughFocus", "iic detector throughfocus").
		field("position", "0,300,11").
		options(lampOptions...).options("tilt", "duplicate", "cam").options(lampSwitch...))
	register(newTemplate("ditheredArcs", "iic ditheredArcs").
		field("pixelStep", "0.5").
		options(lampOptions...).options("duplicate", "cam").options(lampSwitch...))
	register(newTemplate("defocusedArcs", "iic defocusedArcs").
		field("position", "-5,5,11").
		options(lampOptions...).options("duplicate", "cam").options(lampSwitch...))
	register(newTemplate("custom", "iic custom").options("head", "tail"))
	// 任意命令, cmdStr 由用户直接给出
	register(newTemplate(Command, ""))
}

// Command is the free form template: the caller supplies the whole line.
const Command = "command"

func Get(seqType string) (*Template, error) {
	t, ok := registry[seqType]
	if !ok {
		return nil, code.TemplateNotFoundErr.WithMsgf("unknown sequence type: %s", seqType)
	}
	return t, nil
}

func List() []*Template {
	res := make([]*Template, 0, len(registry))
	for _, t := range registry {
		res = append(res, t)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].SeqType < res[j].SeqType })
	return res
}

// Build joins the head and every field whose value is set. Values missing
// from values fall back to the field default. "True" yields the bare key,
// "False" or blank drops the field.
func (t *Template) Build(values map[string]string) string {
	parts := make([]string, 0, len(t.Fields)+1)
	if t.Head != "" {
		parts = append(parts, t.Head)
	}
	for _, f := range t.Fields {
		v, ok := values[f.Key]
		if !ok {
			v = f.Default
		}
		switch v = strings.TrimSpace(v); v {
		case "", "False":
		case "True":
			parts = append(parts, f.Key)
		default:
			parts = append(parts, f.Key+"="+v)
		}
	}
	return strings.Join(parts, " ")
}

// Info builds the sequence info for a new row. The free form template takes
// its command line from cmdStr instead of values.
func (t *Template) Info(name, comments, cmdStr string, values map[string]string) (sequence.Info, error) {
	info := sequence.Info{
		Name:     strings.TrimSpace(name),
		Comments: strings.TrimSpace(comments),
		SeqType:  t.SeqType,
	}
	if t.SeqType != Command {
		info.CmdStr = t.Build(values)
		return info, nil
	}
	if _, _, err := sequence.SplitCommand(cmdStr); err != nil {
		return sequence.Info{}, err
	}
	info.CmdStr = strings.TrimSpace(cmdStr)
	return info, nil
}
