package inspector

import "github.com/local/margincheck/internal/pdfdoc"

// PDFLoader loads documents with pdfdoc at the given render scale.
func PDFLoader(scale float64) Loader {
	return func(data []byte) (Document, error) {
		doc, err := pdfdoc.Load(data, pdfdoc.WithScale(scale))
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
}
