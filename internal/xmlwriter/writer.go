// =============================================================================
// Invoice Combiner - XML Writer Module
// =============================================================================
//
// This module renders the combined records as an XML document, for
// downstream systems that import XML rather than spreadsheets.
//
// XML STRUCTURE:
//   Element names come from the schema's column names:
//
//   <invoices schema="evse" count="2">     <!-- Root element -->
//     <invoice n="1">                      <!-- One element per record -->
//       <evse_id>DE*ABC*E0001</evse_id>
//       <session_id>sess-abc-123-xyz</session_id>
//       <currency>EUR</currency>
//       <price>12.5</price>
//     </invoice>
//     <invoice n="2">
//       ...
//       <price/>                           <!-- Missing price -->
//     </invoice>
//   </invoices>
//
// An XSD describing the same layout can be produced with GenerateXSD.
//
// =============================================================================

package xmlwriter

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ginjaninja78/invoice-combiner/internal/schema"
	"github.com/ginjaninja78/invoice-combiner/internal/types"
)

// =============================================================================
// XML GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for XML generation.
type GenerateOptions struct {
	// Indent is the string used for indentation.
	// Default: "  " (two spaces)
	Indent string

	// IncludeXMLDeclaration determines whether to include the XML declaration.
	// Default: true
	IncludeXMLDeclaration bool

	// RootElement is the document element.
	// Default: "invoices"
	RootElement string

	// RecordElement wraps each record.
	// Default: "invoice"
	RecordElement string

	// IndexAttribute numbers the record elements from 1. Empty disables it.
	// Default: "n"
	IndexAttribute string

	// RootAttributes are additional attributes for the root element.
	// Example: {"xmlns": "http://example.com/invoices"}
	RootAttributes map[string]string
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Indent:                "  ",
		IncludeXMLDeclaration: true,
		RootElement:           "invoices",
		RecordElement:         "invoice",
		IndexAttribute:        "n",
		RootAttributes:        make(map[string]string),
	}
}

// =============================================================================
// XML GENERATION FUNCTIONS
// =============================================================================

// Generate renders records as an XML document with the default options.
func Generate(records []types.Record, s *schema.Schema) ([]byte, error) {
	return GenerateWithOptions(records, s, DefaultGenerateOptions())
}

// GenerateWithOptions renders records as an XML document.
//
// PARAMETERS:
//   - records: The combined records, in output order.
//   - s: The schema; its column names become the field elements.
//   - options: The generation options.
//
// RETURNS:
//   - The XML document as a byte slice.
//   - An error if an element name is not a valid XML name.
func GenerateWithOptions(records []types.Record, s *schema.Schema, options GenerateOptions) ([]byte, error) {
	columns := s.Columns()
	for _, name := range append([]string{options.RootElement, options.RecordElement}, columns...) {
		if !validName(name) {
			return nil, fmt.Errorf("invalid XML element name %q", name)
		}
	}

	var buffer bytes.Buffer

	if options.IncludeXMLDeclaration {
		buffer.WriteString(xml.Header)
	}

	doc := buildDocument(records, s, options)
	writeElement(&buffer, doc, options.Indent, 0)

	return buffer.Bytes(), nil
}

// =============================================================================
// XML DOCUMENT BUILDING
// =============================================================================

// Element is a generic XML element with either a text value or children.
type Element struct {
	Name       string
	Attributes []xml.Attr
	Value      string
	Children   []Element
}

// buildDocument constructs the document tree.
func buildDocument(records []types.Record, s *schema.Schema, options GenerateOptions) Element {
	root := Element{
		Name: options.RootElement,
		Attributes: []xml.Attr{
			attr("schema", s.Name),
			attr("count", strconv.Itoa(len(records))),
		},
	}

	for _, key := range sortedKeys(options.RootAttributes) {
		root.Attributes = append(root.Attributes, attr(key, options.RootAttributes[key]))
	}

	columns := s.Columns()
	for i, rec := range records {
		element := Element{Name: options.RecordElement}
		if options.IndexAttribute != "" {
			element.Attributes = []xml.Attr{attr(options.IndexAttribute, strconv.Itoa(i+1))}
		}

		for j, value := range rec.Values() {
			element.Children = append(element.Children, Element{Name: columns[j], Value: value})
		}
		root.Children = append(root.Children, element)
	}

	return root
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// writeElement writes an element and its subtree with indentation.
func writeElement(buffer *bytes.Buffer, element Element, indent string, level int) {
	prefix := strings.Repeat(indent, level)

	buffer.WriteString(prefix)
	buffer.WriteString("<")
	buffer.WriteString(element.Name)

	for _, a := range element.Attributes {
		buffer.WriteString(" ")
		buffer.WriteString(a.Name.Local)
		buffer.WriteString(`="`)
		escape(buffer, a.Value)
		buffer.WriteString(`"`)
	}

	// Self-closing tag for empty elements.
	if len(element.Children) == 0 && element.Value == "" {
		buffer.WriteString("/>\n")
		return
	}

	buffer.WriteString(">")

	if len(element.Children) == 0 {
		escape(buffer, element.Value)
	} else {
		buffer.WriteString("\n")
		for _, child := range element.Children {
			writeElement(buffer, child, indent, level+1)
		}
		buffer.WriteString(prefix)
	}

	buffer.WriteString("</")
	buffer.WriteString(element.Name)
	buffer.WriteString(">\n")
}

func escape(buffer *bytes.Buffer, s string) {
	// EscapeText only fails when the writer does; bytes.Buffer never does.
	_ = xml.EscapeText(buffer, []byte(s))
}

// validName reports whether name can be used as an unprefixed element name.
func validName(name string) bool {
	if name == "" || strings.HasPrefix(strings.ToLower(name), "xml") {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && (r == '-' || r == '.' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// XSD GENERATION
// =============================================================================

// GenerateXSD creates an XSD describing the documents Generate produces for s.
// The price element is an optional decimal; every other field is a string.
func GenerateXSD(s *schema.Schema, options GenerateOptions) ([]byte, error) {
	var buffer bytes.Buffer

	buffer.WriteString(xml.Header)
	buffer.WriteString(`<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">` + "\n")

	fmt.Fprintf(&buffer, `  <xs:element name="%s">
    <xs:complexType>
      <xs:sequence>
        <xs:element ref="%s" minOccurs="0" maxOccurs="unbounded"/>
      </xs:sequence>
      <xs:attribute name="schema" type="xs:string"/>
      <xs:attribute name="count" type="xs:nonNegativeInteger"/>
    </xs:complexType>
  </xs:element>

`, options.RootElement, options.RecordElement)

	fmt.Fprintf(&buffer, `  <xs:element name="%s">
    <xs:complexType>
      <xs:sequence>
`, options.RecordElement)

	for _, f := range s.Fields {
		if f.Kind == schema.KindPrice {
			fmt.Fprintf(&buffer, `        <xs:element name="%s">
          <xs:simpleType>
            <xs:union memberTypes="xs:decimal">
              <xs:simpleType>
                <xs:restriction base="xs:string">
                  <xs:length value="0"/>
                </xs:restriction>
              </xs:simpleType>
            </xs:union>
          </xs:simpleType>
        </xs:element>
`, f.Name)
			continue
		}
		fmt.Fprintf(&buffer, "        <xs:element name=\"%s\" type=\"xs:string\"/>\n", f.Name)
	}

	buffer.WriteString("      </xs:sequence>\n")
	if options.IndexAttribute != "" {
		fmt.Fprintf(&buffer, "      <xs:attribute name=\"%s\" type=\"xs:positiveInteger\"/>\n", options.IndexAttribute)
	}
	buffer.WriteString(`    </xs:complexType>
  </xs:element>

</xs:schema>
`)

	return buffer.Bytes(), nil
}
