package crud

import "fmt"

// ErrReadOnly is returned if a write reaches an adapter wrapped by [NewReadProvider].
var ErrReadOnly = fmt.Errorf("read-only provider")
