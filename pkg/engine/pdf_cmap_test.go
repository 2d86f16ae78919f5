package engine

import (
	"testing"
)

func TestParseBFChar(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[uint32]string
	}{
		{
			name: "Single mapping",
			input: `
				1 beginbfchar
				<0001> <0041>
				endbfchar
			`,
			expected: map[uint32]string{0x0001: "A"},
		},
		{
			name: "Korean characters",
			input: `
				2 beginbfchar
				<0001> <AC00>
				<0002> <AC01>
				endbfchar
			`,
			expected: map[uint32]string{0x0001: "가", 0x0002: "각"},
		},
		{
			name: "Byte order mark is dropped",
			input: `
				beginbfchar
				<0001> <FEFF0041>
				endbfchar
			`,
			expected: map[uint32]string{0x0001: "A"},
		},
		{
			name: "Ligature",
			input: `
				beginbfchar
				<1F> <00660069>
				endbfchar
			`,
			expected: map[uint32]string{0x1F: "fi"},
		},
		{
			name: "Surrogate pair",
			input: `
				beginbfchar
				<0005> <D83DDE00>
				endbfchar
			`,
			expected: map[uint32]string{0x0005: "\U0001F600"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmap := parseToUnicodeCMap([]byte(tt.input))
			for code, want := range tt.expected {
				got, ok := cmap.lookup(code)
				if !ok {
					t.Errorf("code %04X not found in mapping", code)
					continue
				}
				if got != want {
					t.Errorf("code %04X: expected %q, got %q", code, want, got)
				}
			}
		})
	}
}

func TestParseBFRange(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[uint32]string
		missing  []uint32
	}{
		{
			name: "Contiguous range",
			input: `
				beginbfrange
				<0001> <0005> <0041>
				endbfrange
			`,
			expected: map[uint32]string{0x0001: "A", 0x0003: "C", 0x0005: "E"},
			missing:  []uint32{0x0000, 0x0006},
		},
		{
			name: "Array mapping",
			input: `
				beginbfrange
				<0001> <0003> [<0041> <0043> <0045>]
				endbfrange
			`,
			expected: map[uint32]string{0x0001: "A", 0x0002: "C", 0x0003: "E"},
		},
		{
			name: "Single byte codes",
			input: `
				1 begincodespacerange
				<00> <FF>
				endcodespacerange
				1 beginbfrange
				<20> <7E> <0020>
				endbfrange
			`,
			expected: map[uint32]string{0x20: " ", 0x48: "H", 0x7E: "~"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmap := parseToUnicodeCMap([]byte(tt.input))
			for code, want := range tt.expected {
				got, ok := cmap.lookup(code)
				if !ok || got != want {
					t.Errorf("code %04X: expected %q, got %q (found=%v)", code, want, got, ok)
				}
			}
			for _, code := range tt.missing {
				if got, ok := cmap.lookup(code); ok {
					t.Errorf("code %04X: expected no mapping, got %q", code, got)
				}
			}
		})
	}
}

func TestCMapCodeLength(t *testing.T) {
	two := parseToUnicodeCMap([]byte("begincodespacerange <0000> <FFFF> endcodespacerange"))
	if got := two.codeLength(); got != 2 {
		t.Errorf("codeLength() = %d, want 2", got)
	}
	none := parseToUnicodeCMap(nil)
	if got := none.codeLength(); got != 0 {
		t.Errorf("codeLength() = %d, want 0", got)
	}
}

func TestCMapMappingCount(t *testing.T) {
	cmap := parseToUnicodeCMap([]byte(`
		beginbfchar
		<0001> <0041>
		<0002> <0042>
		endbfchar
		beginbfrange
		<0010> <0019> <0030>
		<0020> <0021> [<0061> <0062>]
		endbfrange
	`))
	if got := cmap.mappingCount(); got != 14 {
		t.Errorf("mappingCount() = %d, want 14", got)
	}
}

func TestComplexRealWorldCMap(t *testing.T) {
	input := `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def
/CMapName /Adobe-Identity-UCS def
/CMapType 2 def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
2 beginbfchar
<0003> <0020>
<0011> <002E>
endbfchar
1 beginbfrange
<0024> <0026> <0041>
endbfrange
endcmap
CMapName currentdict /CMap defineresource pop
end
end`
	cmap := parseToUnicodeCMap([]byte(input))

	var got string
	for _, code := range []uint32{0x24, 0x25, 0x26, 0x03, 0x11} {
		s, ok := cmap.lookup(code)
		if !ok {
			t.Fatalf("code %04X not mapped", code)
		}
		got += s
	}
	if got != "ABC ." {
		t.Errorf("decoded %q, want %q", got, "ABC .")
	}
}

func BenchmarkCMapLookup(b *testing.B) {
	cmap := parseToUnicodeCMap([]byte("beginbfrange <0000> <FFFF> <0000> endbfrange"))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cmap.lookup(uint32(i & 0xffff))
	}
}
