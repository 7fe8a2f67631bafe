package checksum

import (
	"strings"
	"testing"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantMD5    string
		wantSHA256 string
	}{
		{
			name:       "empty",
			content:    "",
			wantMD5:    "d41d8cd98f00b204e9800998ecf8427e",
			wantSHA256: "47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU=",
		},
		{
			name:       "hello world",
			content:    "hello world",
			wantMD5:    "5eb63bbbe01eeed093cb22bb8f5acdc3",
			wantSHA256: "uU0nuZNNPgilLlLX2n2r+sSE7+N6U4DukIj3rOLvzek=",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Calculate(strings.NewReader(tt.content))
			if err != nil {
				t.Fatalf("Calculate() error = %v", err)
			}
			if got.MD5 != tt.wantMD5 {
				t.Errorf("MD5 = %s, want %s", got.MD5, tt.wantMD5)
			}
			if got.SHA256 != tt.wantSHA256 {
				t.Errorf("SHA256 = %s, want %s", got.SHA256, tt.wantSHA256)
			}
			if got.Size != int64(len(tt.content)) {
				t.Errorf("Size = %d, want %d", got.Size, len(tt.content))
			}
		})
	}
}
