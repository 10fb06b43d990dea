package wire

import (
	"testing"
)

// FuzzParseHeader tests the header parser with random input.
// The parser should reject malformed lines gracefully without panicking,
// and any line it accepts must rebuild to the exact input via BuildHeader.
func FuzzParseHeader(f *testing.F) {
	// Add seed corpus with valid headers
	f.Add(BuildHeader("x", Descriptor{Tag: 'd', Width: 8}, 100, ShapeVector(100)))
	f.Add(BuildHeader("m", Descriptor{Tag: 'i', Width: 4}, 12, ShapeMatrix(3, 4)))
	f.Add(BuildHeader("empty", Descriptor{Tag: 'f', Width: 4}, 0, ShapeVector(0)))

	// Add near misses and sentinels
	f.Add("data|x|d|100")
	f.Add("data|x|d|100|(100,)|extra")
	f.Add("data||d|1|(1,)")
	f.Add("data|x|0|1|(1,)")
	f.Add("data|x|d|007|(7,)")
	f.Add(FinalizeMessage)
	f.Add(ExitMessage)
	f.Add("")

	f.Fuzz(func(t *testing.T, line string) {
		h, err := ParseHeader(line)
		if err != nil {
			return // Malformed line, rejection is the expected outcome
		}

		// Anything the parser accepts must round-trip exactly
		rebuilt := BuildHeader(h.Name, h.Desc, h.Count, h.Shape)
		if rebuilt != line {
			t.Errorf("round-trip mismatch:\ngot:  %q\nwant: %q", rebuilt, line)
		}
	})
}
