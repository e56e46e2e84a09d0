package pdftext

import (
	"bytes"
	"crypto/md5"
	"crypto/rc4"
	"fmt"
	"testing"
)

// passwordPad is the 32-byte padding of the standard security handler.
var passwordPad = []byte{
	0x28, 0xbf, 0x4e, 0x5e, 0x4e, 0x75, 0x8a, 0x41, 0x64, 0x00, 0x4e, 0x56, 0xff, 0xfa, 0x01, 0x08,
	0x2e, 0x2e, 0x00, 0xb6, 0xd0, 0x68, 0x3e, 0x80, 0x2f, 0x0c, 0xa9, 0xfe, 0x64, 0x53, 0x69, 0x7a,
}

// buildPDF writes a one-page PDF showing text. With ownerOnly set the trailer
// carries an RC4 40-bit (V1/R2) Encrypt dictionary whose user password is
// empty, so readers open it without asking for a password.
func buildPDF(t *testing.T, text string, ownerOnly bool) []byte {
	t.Helper()

	content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}

	id := []byte("securedoc-fixture")
	trailer := fmt.Sprintf("/Size %d /Root 1 0 R /ID [<%x> <%x>]", len(objects)+1, id, id)
	if ownerOnly {
		trailer += " " + encryptDict(t, id)
	}
	fmt.Fprintf(&buf, "trailer\n<< %s >>\nstartxref\n%d\n%%%%EOF\n", trailer, xref)
	return buf.Bytes()
}

// encryptDict derives O and U for an empty user password (algorithms 3.2 and
// 3.4 of the standard security handler, revision 2).
func encryptDict(t *testing.T, id []byte) string {
	t.Helper()
	const permissions = int32(-4)

	owner := md5.Sum([]byte("owner-secret"))
	o := make([]byte, 32)
	copy(o, passwordPad)
	oc, err := rc4.NewCipher(owner[:5])
	if err != nil {
		t.Fatalf("owner cipher: %v", err)
	}
	oc.XORKeyStream(o, o)

	perm := permissions
	p := uint32(perm)
	h := md5.New()
	h.Write(passwordPad)
	h.Write(o)
	h.Write([]byte{byte(p), byte(p >> 8), byte(p >> 16), byte(p >> 24)})
	h.Write(id)
	key := h.Sum(nil)[:5]

	u := make([]byte, 32)
	copy(u, passwordPad)
	uc, err := rc4.NewCipher(key)
	if err != nil {
		t.Fatalf("user cipher: %v", err)
	}
	uc.XORKeyStream(u, u)

	return fmt.Sprintf("/Encrypt << /Filter /Standard /V 1 /R 2 /O <%x> /U <%x> /P %d >>", o, u, permissions)
}
