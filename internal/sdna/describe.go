package sdna

import (
	"fmt"
	"strings"

	"github.com/meigma/blend/internal/blendtype"
)

// DescribeFields renders the declared fields of the named structure as
// an indented tree, one line per field in declaration order. Non-pointer
// fields of structure type recurse up to maxDepth levels. This is a
// discovery aid; it works from the raw definitions and compiles nothing.
func (c *Catalog) DescribeFields(name string, maxDepth int) (string, error) {
	idx, ok := c.structByName[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", blendtype.ErrUnknownStruct, name)
	}
	var b strings.Builder
	c.describeStruct(&b, idx, 0, maxDepth)
	return b.String(), nil
}

func (c *Catalog) describeStruct(b *strings.Builder, idx, level, maxDepth int) {
	indent := strings.Repeat("    ", level)
	for _, ref := range c.structs[idx].fields {
		raw := c.names[ref.nameIndex]
		typeName := c.types[ref.typeIndex]
		fmt.Fprintf(b, "%s|-- %s %s\n", indent, typeName, raw)

		if level >= maxDepth || strings.Contains(raw, "*") {
			continue
		}
		if child, ok := c.structByName[typeName]; ok {
			c.describeStruct(b, child, level+1, maxDepth)
		}
	}
}
