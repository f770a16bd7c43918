package drawer

import "errors"

// ErrRenderInProgress is returned when RenderContents is called while a
// previous render has not finished.
var ErrRenderInProgress = errors.New("drawer contents are already being rendered")
