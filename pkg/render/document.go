package render

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/inspectpack/core/pkg/contract"
	pkgerrors "github.com/inspectpack/core/pkg/errors"
	"github.com/inspectpack/core/pkg/packet"
	ximagedraw "golang.org/x/image/draw"
)

// placeholderPattern matches both field placeholders ({{ field_key }})
// and photo anchors ({{ photo_<slot_key> }}) — the latter are just a
// reserved field-key shape, "photo_" + slot key.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

const photoPlaceholderPrefix = "photo_"

// Result is what RenderDocument reports for one render.
type Result struct {
	Warnings []pkgerrors.Warning
}

// RenderDocument substitutes field/photo placeholders in manifest's
// declared text parts and splices resized slot photos into their
// declared media parts, writing the result to outputPath. A placeholder
// the contract does not declare (as a field key or "photo_<slot_key>")
// rejects the whole render with TEMPLATE_UNKNOWN_PLACEHOLDER; a declared
// field placeholder absent from the packet resolves to empty string with
// a PLACEHOLDER_UNRESOLVED warning.
func RenderDocument(templatePath, outputPath string, manifest DocumentManifest, c *contract.Contract, p *packet.NormalizedPacket, photoSources map[string]string) (*Result, error) {
	declared := declaredPlaceholders(c)
	textParts := make(map[string]bool, len(manifest.TextParts))
	for _, name := range manifest.TextParts {
		textParts[name] = true
	}
	mediaBySlot := make(map[string]ImageAnchor, len(manifest.Images))
	for _, img := range manifest.Images {
		mediaBySlot[img.MediaPart] = img
	}

	zr, err := zip.OpenReader(templatePath)
	if err != nil {
		return nil, fmt.Errorf("render: open template %s: %w", templatePath, err)
	}
	defer zr.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("render: create %s: %w", outputPath, err)
	}
	defer out.Close()
	zw := zip.NewWriter(out)

	result := &Result{}

	for _, f := range zr.File {
		content, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("render: read %s: %w", f.Name, err)
		}

		switch {
		case textParts[f.Name]:
			substituted, warnings, err := substitutePlaceholders(content, declared, p)
			if err != nil {
				return nil, err
			}
			result.Warnings = append(result.Warnings, warnings...)
			content = substituted
		default:
			if anchor, ok := mediaBySlot[f.Name]; ok {
				if srcPath, ok := photoSources[anchor.SlotKey]; ok && srcPath != "" {
					fitted, err := fitImageToAnchor(srcPath, anchor)
					if err != nil {
						return nil, fmt.Errorf("render: fit photo for slot %s: %w", anchor.SlotKey, err)
					}
					content = fitted
				}
				// No source for this slot: leave the template's own
				// placeholder image in place, per template policy.
			}
		}

		if err := writeZipEntry(zw, f, content); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("render: close output zip: %w", err)
	}
	return result, nil
}

// declaredPlaceholders is the full set of placeholder names a template
// may legally reference: every contract field key, plus "photo_" + every
// declared slot key.
func declaredPlaceholders(c *contract.Contract) map[string]bool {
	declared := make(map[string]bool, len(c.Fields)+len(c.Slots))
	for key := range c.Fields {
		declared[key] = true
	}
	for _, slot := range c.Slots {
		declared[photoPlaceholderPrefix+slot.Key] = true
	}
	return declared
}

func substitutePlaceholders(content []byte, declared map[string]bool, p *packet.NormalizedPacket) ([]byte, []pkgerrors.Warning, error) {
	var warnings []pkgerrors.Warning
	var outerErr error

	replaced := placeholderPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		name := placeholderPattern.FindSubmatch(match)[1]
		key := string(name)

		if !declared[key] {
			if outerErr == nil {
				outerErr = pkgerrors.Reject(pkgerrors.TemplateUnknownPlaceholder, key, "",
					fmt.Sprintf("template references undeclared placeholder %q", key))
			}
			return match
		}

		if strings.HasPrefix(key, photoPlaceholderPrefix) {
			return []byte{}
		}

		value, present := p.Get(key)
		if !present {
			warnings = append(warnings, pkgerrors.NewWarning(pkgerrors.PlaceholderUnresolved, "render:"+key, key,
				"placeholder resolved to empty string; field absent from packet"))
			return []byte{}
		}
		return []byte(value)
	})

	if outerErr != nil {
		return nil, nil, outerErr
	}
	return replaced, warnings, nil
}

// fitImageToAnchor decodes the photo at srcPath, scales it to fit within
// anchor's declared box using golang.org/x/image/draw (bilinear), and
// re-encodes as JPEG for splicing into the zip media part.
func fitImageToAnchor(srcPath string, anchor ImageAnchor) ([]byte, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", srcPath, err)
	}

	bounds := src.Bounds()
	maxW, maxH := anchor.MaxWidthPx, anchor.MaxHeightPx
	if maxW <= 0 {
		maxW = bounds.Dx()
	}
	if maxH <= 0 {
		maxH = bounds.Dy()
	}

	dstW, dstH := scaleToFit(bounds.Dx(), bounds.Dy(), maxW, maxH)
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	ximagedraw.BiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode fitted image: %w", err)
	}
	return buf.Bytes(), nil
}

func scaleToFit(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= maxW && srcH <= maxH {
		return srcW, srcH
	}
	wRatio := float64(maxW) / float64(srcW)
	hRatio := float64(maxH) / float64(srcH)
	ratio := wRatio
	if hRatio < ratio {
		ratio = hRatio
	}
	w := int(float64(srcW) * ratio)
	h := int(float64(srcH) * ratio)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func writeZipEntry(zw *zip.Writer, src *zip.File, content []byte) error {
	header := src.FileHeader
	w, err := zw.CreateHeader(&header)
	if err != nil {
		return fmt.Errorf("render: write zip entry %s: %w", src.Name, err)
	}
	_, err = w.Write(content)
	return err
}
