package render

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/inspectpack/core/pkg/contract"
	"github.com/inspectpack/core/pkg/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const documentContractYAML = `
version: "1"
fields:
  wo_no:
    type: token
    importance: critical
  notes:
    type: free_text
    importance: reference
photos:
  slots:
    - key: overview
      basename: overview
      required: true
`

func buildTemplateZip(t *testing.T, path string, parts map[string]string, mediaParts map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	for name, content := range mediaParts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func readZipEntryBytes(t *testing.T, path, name string) []byte {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			var buf bytes.Buffer
			_, err = buf.ReadFrom(rc)
			require.NoError(t, err)
			return buf.Bytes()
		}
	}
	t.Fatalf("entry %s not found", name)
	return nil
}

func samplePhoto(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestRenderDocumentSubstitutesKnownPlaceholders(t *testing.T) {
	c, err := contract.Parse([]byte(documentContractYAML))
	require.NoError(t, err)

	root := t.TempDir()
	templatePath := filepath.Join(root, "template.docx")
	buildTemplateZip(t, templatePath, map[string]string{
		"document.xml": `<doc>wo_no: {{ wo_no }}, notes: {{ notes }}</doc>`,
	}, nil)

	p := &packet.NormalizedPacket{}
	p.Set("wo_no", "WO-100")

	outputPath := filepath.Join(root, "out.docx")
	manifest := DocumentManifest{TextParts: []string{"document.xml"}}
	result, err := RenderDocument(templatePath, outputPath, manifest, c, p, nil)
	require.NoError(t, err)

	content := string(readZipEntryBytes(t, outputPath, "document.xml"))
	assert.Contains(t, content, "wo_no: WO-100")
	assert.Contains(t, content, "notes: ")

	found := false
	for _, w := range result.Warnings {
		if string(w.Code) == "PLACEHOLDER_UNRESOLVED" {
			found = true
		}
	}
	assert.True(t, found, "expected a PLACEHOLDER_UNRESOLVED warning for the absent notes field")
}

func TestRenderDocumentRejectsUndeclaredPlaceholder(t *testing.T) {
	c, err := contract.Parse([]byte(documentContractYAML))
	require.NoError(t, err)

	root := t.TempDir()
	templatePath := filepath.Join(root, "template.docx")
	buildTemplateZip(t, templatePath, map[string]string{
		"document.xml": `<doc>{{ not_a_real_field }}</doc>`,
	}, nil)

	p := &packet.NormalizedPacket{}
	manifest := DocumentManifest{TextParts: []string{"document.xml"}}
	_, err = RenderDocument(templatePath, filepath.Join(root, "out.docx"), manifest, c, p, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEMPLATE_UNKNOWN_PLACEHOLDER")
}

func TestRenderDocumentInsertsPhotoIntoMediaPart(t *testing.T) {
	c, err := contract.Parse([]byte(documentContractYAML))
	require.NoError(t, err)

	root := t.TempDir()
	templatePath := filepath.Join(root, "template.docx")
	buildTemplateZip(t, templatePath,
		map[string]string{"document.xml": `<doc>{{ photo_overview }}</doc>`},
		map[string][]byte{"word/media/image1.jpeg": []byte("placeholder-bytes")})

	photoPath := filepath.Join(root, "overview.jpg")
	samplePhoto(t, photoPath, 800, 600)

	manifest := DocumentManifest{
		TextParts: []string{"document.xml"},
		Images: []ImageAnchor{
			{SlotKey: "overview", MediaPart: "word/media/image1.jpeg", MaxWidthPx: 200, MaxHeightPx: 150},
		},
	}

	outputPath := filepath.Join(root, "out.docx")
	_, err = RenderDocument(templatePath, outputPath, manifest, c, &packet.NormalizedPacket{}, map[string]string{"overview": photoPath})
	require.NoError(t, err)

	media := readZipEntryBytes(t, outputPath, "word/media/image1.jpeg")
	assert.NotEqual(t, []byte("placeholder-bytes"), media)

	img, err := jpeg.Decode(bytes.NewReader(media))
	require.NoError(t, err)
	bounds := img.Bounds()
	assert.LessOrEqual(t, bounds.Dx(), 200)
	assert.LessOrEqual(t, bounds.Dy(), 150)

	docXML := string(readZipEntryBytes(t, outputPath, "document.xml"))
	assert.NotContains(t, docXML, "photo_overview")
}
