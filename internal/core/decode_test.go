package core

import "testing"

func TestDecode(t *testing.T) {
	tests := []struct {
		name         string
		input        []byte
		wantText     string
		wantEncoding string
	}{
		{
			name:         "empty",
			input:        nil,
			wantText:     "",
			wantEncoding: "utf-8",
		},
		{
			name:         "plain utf-8",
			input:        []byte("héllo"),
			wantText:     "héllo",
			wantEncoding: "utf-8",
		},
		{
			name:         "utf-8 BOM stripped",
			input:        []byte{0xEF, 0xBB, 0xBF, 'a', ',', 'b'},
			wantText:     "a,b",
			wantEncoding: "utf-8-bom",
		},
		{
			name:         "utf-16 little endian",
			input:        []byte{0xFF, 0xFE, 'a', 0, ',', 0, 'b', 0},
			wantText:     "a,b",
			wantEncoding: "utf-16le",
		},
		{
			name:         "utf-16 big endian",
			input:        []byte{0xFE, 0xFF, 0, 'a', 0, ',', 0, 'b'},
			wantText:     "a,b",
			wantEncoding: "utf-16be",
		},
		{
			name:         "windows-1252 fallback",
			input:        []byte("caf\xe9 \x80"),
			wantText:     "café €",
			wantEncoding: "windows-1252",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, enc, err := Decode(tt.input)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if text != tt.wantText {
				t.Errorf("Decode() text = %q, want %q", text, tt.wantText)
			}
			if enc != tt.wantEncoding {
				t.Errorf("Decode() encoding = %q, want %q", enc, tt.wantEncoding)
			}
		})
	}
}
