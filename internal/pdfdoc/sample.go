package pdfdoc

import (
	"bytes"
	"fmt"
)

// Synthesize builds a single-page PDF of w×h points whose content stream is
// the given operators, with a valid cross-reference table.
func Synthesize(w, h int, content string) []byte {
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Contents 4 0 R /Resources << >> >>", w, h),
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

// SelfTest loads and renders a tiny generated document. It is used by the
// status endpoint to confirm the renderer works in this process.
func SelfTest() error {
	d, err := Load(Synthesize(20, 20, "0 0 0 rg 5 5 10 10 re f"), WithScale(1))
	if err != nil {
		return err
	}
	defer d.Close()
	_, err = d.Page(1)
	return err
}
