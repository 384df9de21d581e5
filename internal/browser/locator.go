package browser

import (
	"fmt"
	"strings"
)

// Strategy names how a Locator's value is interpreted.
type Strategy string

// Supported locator strategies.
const (
	ByCSS             Strategy = "css"
	ByXPath           Strategy = "xpath"
	ByID              Strategy = "id"
	ByName            Strategy = "name"
	ByLinkText        Strategy = "link text"
	ByPartialLinkText Strategy = "partial link text"
	ByTag             Strategy = "tag"
)

// Locator identifies a DOM element by strategy and value.
type Locator struct {
	Strategy Strategy `yaml:"strategy"`
	Value    string   `yaml:"value"`
}

// CSS returns a css Locator.
func CSS(sel string) Locator { return Locator{Strategy: ByCSS, Value: sel} }

// XPath returns an xpath Locator.
func XPath(expr string) Locator { return Locator{Strategy: ByXPath, Value: expr} }

// ID returns a Locator matching an element id.
func ID(id string) Locator { return Locator{Strategy: ByID, Value: id} }

// LinkText returns a Locator matching an anchor by its exact visible text.
func LinkText(text string) Locator { return Locator{Strategy: ByLinkText, Value: text} }

// PartialLinkText returns a Locator matching an anchor whose text contains text.
func PartialLinkText(text string) Locator { return Locator{Strategy: ByPartialLinkText, Value: text} }

// TitleLocator matches the document <title> element carrying exactly title.
func TitleLocator(title string) Locator {
	return XPath(fmt.Sprintf("//title[text()=%s]", xpathLiteral(title)))
}

// String renders the locator as "strategy=value".
func (l Locator) String() string {
	return string(l.Strategy) + "=" + l.Value
}

// IsZero reports whether the locator is unset.
func (l Locator) IsZero() bool {
	return l.Strategy == "" && l.Value == ""
}

// Validate checks that the strategy is known and the value non-empty.
func (l Locator) Validate() error {
	switch l.Strategy {
	case ByCSS, ByXPath, ByID, ByName, ByLinkText, ByPartialLinkText, ByTag:
	default:
		return fmt.Errorf("unknown locator strategy %q", l.Strategy)
	}
	if strings.TrimSpace(l.Value) == "" {
		return fmt.Errorf("locator %s has an empty value", l.Strategy)
	}
	return nil
}

// XPathExpr converts any strategy to an equivalent XPath expression.
// CSS selectors are the only strategy without an XPath form; callers that
// need one must use CSSExpr instead.
func (l Locator) XPathExpr() (string, error) {
	switch l.Strategy {
	case ByXPath:
		return l.Value, nil
	case ByID:
		return fmt.Sprintf("//*[@id=%s]", xpathLiteral(l.Value)), nil
	case ByName:
		return fmt.Sprintf("//*[@name=%s]", xpathLiteral(l.Value)), nil
	case ByLinkText:
		return fmt.Sprintf("//a[normalize-space(.)=%s]", xpathLiteral(l.Value)), nil
	case ByPartialLinkText:
		return fmt.Sprintf("//a[contains(normalize-space(.), %s)]", xpathLiteral(l.Value)), nil
	case ByTag:
		return "//" + l.Value, nil
	default:
		return "", fmt.Errorf("locator %s has no xpath form", l)
	}
}

// CSSExpr converts the strategies that have a CSS form.
func (l Locator) CSSExpr() (string, bool) {
	switch l.Strategy {
	case ByCSS:
		return l.Value, true
	case ByID:
		return "#" + l.Value, true
	case ByName:
		return fmt.Sprintf("[name=%q]", l.Value), true
	case ByTag:
		return l.Value, true
	default:
		return "", false
	}
}

// xpathLiteral quotes s for use inside an XPath expression, falling back to
// concat() when s contains both quote characters.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if p != "" {
			quoted = append(quoted, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
