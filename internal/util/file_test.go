package util

import "testing"

func TestSniffMaterialAcceptsKnownTypes(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"pdf", []byte("%PDF-1.7\n%âãÏÓ"), "application/pdf"},
		{"png", []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}, "image/png"},
		{"text", []byte("细胞是生命活动的基本单位。"), "text/"},
	}
	for _, c := range cases {
		mime, err := SniffMaterial(c.data)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.name, err)
		}
		if len(mime) < len(c.want) || mime[:len(c.want)] != c.want {
			t.Fatalf("%s: got mime %s, want prefix %s", c.name, mime, c.want)
		}
	}
}

func TestSniffMaterialRejectsBinary(t *testing.T) {
	// ZIP 魔数，既不是图片也不是 PDF 或文本
	data := []byte{0x50, 0x4b, 0x03, 0x04, 0x00, 0x00, 0x01, 0x02}
	if _, err := SniffMaterial(data); err == nil {
		t.Fatalf("expected rejection for zip payload")
	}
}

func TestIsImage(t *testing.T) {
	if !IsImage("image/png") || !IsImage("image/jpeg") {
		t.Fatalf("image mime types should be recognized")
	}
	if IsImage("application/pdf") || IsImage("text/plain") {
		t.Fatalf("non-image mime types should be rejected")
	}
}

func TestIsAllowedMaterialExt(t *testing.T) {
	allowed := []string{"讲义.pdf", "notes.TXT", "chapter.md", "图1.PNG", "photo.jpeg", "scan.webp"}
	for _, name := range allowed {
		if !IsAllowedMaterialExt(name) {
			t.Fatalf("%s should be allowed", name)
		}
	}
	rejected := []string{"archive.zip", "run.exe", "data.csv", "noext"}
	for _, name := range rejected {
		if IsAllowedMaterialExt(name) {
			t.Fatalf("%s should be rejected", name)
		}
	}
}
