//go:build !tiledb

package catalog

import (
	"context"
	"errors"

	"github.com/gt-overlay/server/internal/raster"
)

// ErrUnsupported indicates this binary was built without "-tags tiledb".
var ErrUnsupported = errors.New("tiledb catalog backend not enabled in this build (build with: go build -tags tiledb)")

// TileDBBackend is a stub when built without "-tags tiledb". It does not
// check root; every read method returns ErrUnsupported.
type TileDBBackend struct {
	root string
}

// NewTileDBBackend records root without opening TileDB or checking that
// root exists.
func NewTileDBBackend(root string) (*TileDBBackend, error) {
	return &TileDBBackend{root: root}, nil
}

func (b *TileDBBackend) Supported() bool { return false }

func (b *TileDBBackend) Metadata(context.Context, string, int) (*LayerMetadata, error) {
	return nil, ErrUnsupported
}

func (b *TileDBBackend) NativeZoom(context.Context, string) (int, error) {
	return 0, ErrUnsupported
}

func (b *TileDBBackend) ReadTile(context.Context, string, int, TileKey) (*raster.Raster, error) {
	return nil, ErrUnsupported
}

func (b *TileDBBackend) Close() error { return nil }
