package analysis

import (
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Attributes stripped during normalization unless the caller asks for them.
// Tag arrays on cloud log records routinely dwarf the payload itself and are
// useless for aggregation.
var noisyAttributes = map[string]bool{
	"tags": true,
}

// Candidate embedded-structure patterns inside free-text messages. The JSON
// pattern grabs the outermost brace/bracket span; validity is checked by
// gjson before anything is merged.
var (
	embeddedJSONPattern = regexp.MustCompile(`(?s)[{\[].*[}\]]`)
	embeddedXMLPattern  = regexp.MustCompile(`(?s)<([A-Za-z][\w.-]*)(\s[^>]*)?>.*</([A-Za-z][\w.-]*)>`)
)

// messageParsedPrefix is the dotted-key namespace for attributes recovered
// from structured sub-documents embedded in the message text.
const messageParsedPrefix = "message_parsed"

// NormalizeOptions controls Normalize behavior.
type NormalizeOptions struct {
	// KeepNoisyAttributes retains bulky metadata arrays (e.g. tags) that are
	// stripped by default.
	KeepNoisyAttributes bool
}

// Normalize returns a derived record whose attribute map has noisy metadata
// arrays removed and any structured sub-document found inside the message
// flattened into message_parsed.<path> keys. The input record is never
// mutated. A single parse attempt is made per record: a JSON-looking
// substring is tried first, an XML fragment only when no JSON candidate
// exists. Malformed embedded data is recovered silently and the record
// passes through unenriched.
func Normalize(rec Record, opts NormalizeOptions) Record {
	out := Record{ID: rec.ID, Attributes: make(map[string]any, len(rec.Attributes)+4)}

	for k, v := range rec.Attributes {
		if !opts.KeepNoisyAttributes && noisyAttributes[k] {
			if _, isArray := v.([]any); isArray {
				continue
			}
		}
		out.Attributes[k] = v
	}

	msg := StringAttr(rec.Attributes, "message")
	if msg == "" {
		return out
	}

	if candidate := embeddedJSONPattern.FindString(msg); candidate != "" {
		flattenEmbeddedJSON(candidate, out.Attributes)
		return out
	}
	if candidate := embeddedXMLPattern.FindString(msg); candidate != "" {
		flattenEmbeddedXML(candidate, out.Attributes)
	}
	return out
}

// flattenEmbeddedJSON merges a validated JSON object/array into attrs under
// dotted message_parsed keys. Objects recurse depth-first; an array is
// serialized back to a single JSON string at the point it is reached, with
// no further recursion into its elements.
func flattenEmbeddedJSON(candidate string, attrs map[string]any) {
	if !gjson.Valid(candidate) {
		return
	}
	parsed := gjson.Parse(candidate)
	if parsed.IsArray() {
		attrs[messageParsedPrefix] = parsed.Raw
		return
	}
	if !parsed.IsObject() {
		return
	}
	flattenJSONObject(parsed, messageParsedPrefix, attrs)
}

func flattenJSONObject(obj gjson.Result, prefix string, attrs map[string]any) {
	obj.ForEach(func(key, value gjson.Result) bool {
		path := prefix + "." + key.String()
		switch {
		case value.IsObject():
			flattenJSONObject(value, path, attrs)
		case value.IsArray():
			attrs[path] = value.Raw
		default:
			attrs[path] = value.Value()
		}
		return true
	})
}

// flattenEmbeddedXML walks a well-formed XML fragment and merges element
// character data into attrs under dotted message_parsed keys. A malformed
// fragment leaves attrs untouched.
func flattenEmbeddedXML(candidate string, attrs map[string]any) {
	decoder := xml.NewDecoder(strings.NewReader(candidate))

	type pending struct {
		path string
		text strings.Builder
		// leaf is cleared as soon as a child element appears, so only
		// innermost elements contribute values.
		leaf bool
	}

	var stack []*pending
	staged := make(map[string]any)

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return // malformed: pass through unchanged
		}
		switch t := tok.(type) {
		case xml.StartElement:
			path := messageParsedPrefix
			if len(stack) > 0 {
				stack[len(stack)-1].leaf = false
				path = stack[len(stack)-1].path
			}
			stack = append(stack, &pending{path: path + "." + t.Name.Local, leaf: true})
		case xml.EndElement:
			if len(stack) == 0 {
				return
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.leaf {
				if text := strings.TrimSpace(top.text.String()); text != "" {
					staged[top.path] = text
				}
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if len(stack) != 0 {
		return
	}
	for k, v := range staged {
		attrs[k] = v
	}
}

// NormalizeAll applies Normalize to every record of a result set, preserving
// order and pagination state.
func NormalizeAll(rs ResultSet, opts NormalizeOptions) ResultSet {
	out := ResultSet{
		Records:       make([]Record, len(rs.Records)),
		HasMore:       rs.HasMore,
		NextPageToken: rs.NextPageToken,
	}
	for i, rec := range rs.Records {
		out.Records[i] = Normalize(rec, opts)
	}
	return out
}
