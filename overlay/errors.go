package overlay

import "fmt"

// TemplateLoadError reports a template that could not be parsed or has no
// first page. Nothing is drawn when it is returned.
type TemplateLoadError struct {
	Err error
}

func (e *TemplateLoadError) Error() string {
	return fmt.Sprintf("load template: %v", e.Err)
}

func (e *TemplateLoadError) Unwrap() error { return e.Err }

// EmbeddedAssetError reports a signature slot whose image could not be
// decoded or embedded.
type EmbeddedAssetError struct {
	Slot string
	Err  error
}

func (e *EmbeddedAssetError) Error() string {
	return fmt.Sprintf("embed signature %s: %v", e.Slot, e.Err)
}

func (e *EmbeddedAssetError) Unwrap() error { return e.Err }
