package graph

import (
	"fmt"
	"strconv"
	"time"
)

// UnknownText is shown when a node has no usable identifying property.
const UnknownText = "Unknown"

// Node types of the vulnerability intelligence graph.
const (
	LabelVulnerability = "Vulnerability"
	LabelExploit       = "Exploit"
	LabelWeakness      = "Weakness"
	LabelProduct       = "Product"
	LabelVendor        = "Vendor"
	LabelAuthor        = "Author"
	LabelDomain        = "Domain"
)

// displayProperty maps a node type to the property that identifies it on screen.
var displayProperty = map[string]string{
	LabelVulnerability: "cveID",
	LabelExploit:       "eid",
	LabelWeakness:      "cweID",
	LabelProduct:       "productName",
	LabelVendor:        "vendorName",
	LabelAuthor:        "authorName",
	LabelDomain:        "domainName",
}

// DisplayProperty returns the identifying property for a node type.
func DisplayProperty(label string) (string, bool) {
	key, ok := displayProperty[label]
	return key, ok
}

// DisplayText returns the text drawn inside a node. Schema nodes show their
// type name. Unknown types and missing or non-scalar properties fall back to
// UnknownText.
func DisplayText(n GraphNode) string {
	if n.IsSchema() {
		if t := SchemaType(n.ID); t != "" {
			return t
		}
		return UnknownText
	}

	key, ok := displayProperty[n.Label]
	if !ok {
		return UnknownText
	}
	text, ok := ScalarString(n.Properties[key])
	if !ok || text == "" {
		return UnknownText
	}
	return text
}

// ScalarString formats a primitive property value. It returns false for nil
// and for composite values.
func ScalarString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32), true
	case time.Time:
		return val.Format(time.RFC3339), true
	case fmt.Stringer:
		return val.String(), true
	default:
		return "", false
	}
}
