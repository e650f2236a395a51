// Package dsl 定义小票描述语言的语法树，并用 participle 解析。
//
// 一个文件由 receipt 头与 meta、resources、body 三类段落组成：
//
//	receipt Demo v1 {
//	  meta { title: "Receipt" }
//	  resources { color Ink = #333333 }
//	  body width 384px padding 5dp {
//	    line { left { "Tea" } right Ink { "${price}" } }
//	  }
//	}
package dsl

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	receiptLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Newline", Pattern: `\n+`},
		{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
		{Name: "LineComment", Pattern: `//[^\n]*`},
		// 颜色必须先于 # 注释匹配，#333 与 #0F62FE 都是颜色
		{Name: "Color", Pattern: `#(?:[0-9A-Fa-f]{8}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{3})\b`},
		{Name: "HashComment", Pattern: `#[^\n]*`},
		{Name: "Number", Pattern: `\d+(?:\.\d+)?(?:px|dip|dp|sp|pt|%)?`},
		{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Punct", Pattern: `[][.,:;=]`},
		{Name: "LBrace", Pattern: `{`},
		{Name: "RBrace", Pattern: `}`},
	})

	receiptParser = participle.MustBuild[Document](
		participle.Lexer(receiptLexer),
		participle.Elide("Whitespace", "LineComment", "BlockComment", "HashComment"),
	)
)

// Document 是一个小票文件的根节点。
type Document struct {
	Pos      lexer.Position `parser:"" json:"-"`
	Name     string         `parser:"Newline* 'receipt' @Ident"`
	Version  string         `parser:"@Ident"`
	Sections []*Section     `parser:"'{' Newline* ( @@ Newline* )* '}' Newline*"`
}

// Section 是顶层段落之一。
type Section struct {
	Meta      *MetaSection      `parser:"  @@"`
	Resources *ResourcesSection `parser:"| @@"`
	Body      *BodySection      `parser:"| @@"`
}

// Kind 返回段落名。
func (s *Section) Kind() string {
	switch {
	case s == nil:
		return "unknown"
	case s.Meta != nil:
		return "meta"
	case s.Resources != nil:
		return "resources"
	case s.Body != nil:
		return "body"
	default:
		return "unknown"
	}
}

// MetaSection 只包含 key: value 赋值。
type MetaSection struct {
	Block *Block `parser:"'meta' @@"`
}

// ResourcesSection 声明 font、color、image、style 资源。
type ResourcesSection struct {
	Block *Block `parser:"'resources' @@"`
}

// BodySection 保存小票的行。Params 为成对的参数，例如 width 384px padding 5dp。
type BodySection struct {
	Pos    lexer.Position `parser:"" json:"-"`
	Params []*Arg         `parser:"'body' @@*"`
	Block  *Block         `parser:"@@"`
}

// Block 是花括号内的语句序列，语句之间以换行或分号分隔。
type Block struct {
	Statements []*Statement `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// Statement 是赋值、命令或裸文本之一。
type Statement struct {
	Assignment *Assignment    `parser:"  @@"`
	Command    *Command       `parser:"| @@"`
	Text       *StringLiteral `parser:"| @String"`
}

// Assignment 形如 key: value。
type Assignment struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Key   string         `parser:"@Ident ':' Newline*"`
	Value *Value         `parser:"@@"`
}

// Command 是带参数与可选子块的指令，如 line、left、divider、each。
type Command struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Name  string         `parser:"@Ident"`
	Args  []*Arg         `parser:"@@*"`
	Block *Block         `parser:"( Newline* @@ )?"`
}

// ArgKind 区分命令参数的词法类别。
type ArgKind int

const (
	ArgIdent ArgKind = iota
	ArgString
	ArgNumber
	ArgColor
	ArgSymbol
)

// Arg 是命令参数。标识符可以是 a.b[0].c 形式的数据路径。
type Arg struct {
	Pos    lexer.Position `parser:"" json:"-"`
	Str    *StringLiteral `parser:"  @String"`
	Number *string        `parser:"| @Number"`
	Color  *string        `parser:"| @Color"`
	Ident  *string        `parser:"| @Ident ( @'.' @Ident | @'[' @Number @']' )*"`
	Symbol *string        `parser:"| @'='"`
}

// Kind 返回参数类别。
func (a *Arg) Kind() ArgKind {
	switch {
	case a.Str != nil:
		return ArgString
	case a.Number != nil:
		return ArgNumber
	case a.Color != nil:
		return ArgColor
	case a.Symbol != nil:
		return ArgSymbol
	default:
		return ArgIdent
	}
}

// Text 返回参数值，字符串已去掉引号。
func (a *Arg) Text() string {
	switch {
	case a == nil:
		return ""
	case a.Str != nil:
		return string(*a.Str)
	case a.Number != nil:
		return *a.Number
	case a.Color != nil:
		return *a.Color
	case a.Ident != nil:
		return *a.Ident
	case a.Symbol != nil:
		return *a.Symbol
	}
	return ""
}

// Is 判断参数是否为给定的关键字（忽略大小写）。
func (a *Arg) Is(keyword string) bool {
	return a.Kind() == ArgIdent && strings.EqualFold(a.Text(), keyword)
}

func (a *Arg) String() string {
	if a.Kind() == ArgString {
		return strconv.Quote(a.Text())
	}
	return a.Text()
}

// Value 是赋值右侧的取值。
type Value struct {
	Str    *StringLiteral `parser:"  @String"`
	Number *string        `parser:"| @Number"`
	Color  *string        `parser:"| @Color"`
	Ident  *string        `parser:"| @Ident ( @'.' @Ident )*"`
	List   *List          `parser:"| @@"`
}

// List 是 [ ... ] 形式的取值列表，元素以逗号或换行分隔。
type List struct {
	Items []*Value `parser:"'[' Newline* ( @@ ( ( ',' | Newline+ ) Newline* @@ )* )? Newline* ']'"`
}

// Text 返回标量取值；列表以逗号连接。
func (v *Value) Text() string {
	switch {
	case v == nil:
		return ""
	case v.Str != nil:
		return string(*v.Str)
	case v.Number != nil:
		return *v.Number
	case v.Color != nil:
		return *v.Color
	case v.Ident != nil:
		return *v.Ident
	case v.List != nil:
		return strings.Join(v.Strings(), ", ")
	}
	return ""
}

// Strings 返回列表中非空的元素；标量取值视为单元素列表。
func (v *Value) Strings() []string {
	if v == nil {
		return nil
	}
	if v.List == nil {
		if s := v.Text(); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(v.List.Items))
	for _, item := range v.List.Items {
		if s := item.Text(); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// StringLiteral 在捕获时按 Go 语法去除引号与转义。
type StringLiteral string

// Capture implements participle.Capture.
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("string literal capture requires value")
	}
	val, err := strconv.Unquote(values[0])
	if err != nil {
		return err
	}
	*s = StringLiteral(val)
	return nil
}

// Parse 从 io.Reader 解析小票文件。
func Parse(r io.Reader) (*Document, error) {
	return receiptParser.Parse("", r)
}

// ParseFile 解析小票文件，错误位置以 filename 标注。
func ParseFile(filename string, r io.Reader) (*Document, error) {
	return receiptParser.Parse(filename, r)
}

// ParseString 解析字符串形式的小票。
func ParseString(input string) (*Document, error) {
	return receiptParser.ParseString("", input)
}

// Body 返回第一个 body 段落，没有时为 nil。
func (d *Document) Body() *BodySection {
	if d == nil {
		return nil
	}
	for _, section := range d.Sections {
		if section.Body != nil {
			return section.Body
		}
	}
	return nil
}

// Resources 按出现顺序返回所有 resources 段落中的资源声明。
func (d *Document) Resources() []*Command {
	var out []*Command
	for _, section := range d.Sections {
		if section.Resources == nil || section.Resources.Block == nil {
			continue
		}
		for _, stmt := range section.Resources.Block.Statements {
			if stmt.Command != nil {
				out = append(out, stmt.Command)
			}
		}
	}
	return out
}

// Meta 返回所有 meta 段落中的赋值，后出现的同名键覆盖前者。
func (d *Document) Meta() []*Assignment {
	var out []*Assignment
	for _, section := range d.Sections {
		if section.Meta == nil || section.Meta.Block == nil {
			continue
		}
		for _, stmt := range section.Meta.Block.Statements {
			if stmt.Assignment != nil {
				out = append(out, stmt.Assignment)
			}
		}
	}
	return out
}

// Property 返回子块中 key 的赋值，不存在时为 nil。
func (c *Command) Property(key string) *Value {
	if c == nil || c.Block == nil {
		return nil
	}
	for _, stmt := range c.Block.Statements {
		if stmt.Assignment != nil && stmt.Assignment.Key == key {
			return stmt.Assignment.Value
		}
	}
	return nil
}

// Properties 返回子块中的全部赋值。
func (c *Command) Properties() []*Assignment {
	if c == nil || c.Block == nil {
		return nil
	}
	var out []*Assignment
	for _, stmt := range c.Block.Statements {
		if stmt.Assignment != nil {
			out = append(out, stmt.Assignment)
		}
	}
	return out
}

// Text 拼接子块中的裸文本。
func (c *Command) Text() string {
	if c == nil || c.Block == nil {
		return ""
	}
	var sb strings.Builder
	for _, stmt := range c.Block.Statements {
		if stmt.Text != nil {
			sb.WriteString(string(*stmt.Text))
		}
	}
	return sb.String()
}
