// Package buffers adapts Go slices to the typed-buffer wire contract.
//
// A Buffer pairs raw element storage with the metadata a header line
// carries: the element descriptor, the element count, and the shape string.
// The adapters do not copy. Bytes reinterprets the backing array in place,
// so a buffer view is valid only while the caller keeps the underlying
// slice alive and unmutated. The session publishes the view before
// returning and never retains it.
//
// # Element Order
//
// Matrix storage is row-major: element (r, c) lives at index r*cols + c.
// The wire format carries no stride information, so consumers reshape on
// the same convention.
package buffers

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/muralivnv/gopyplot/wire"
)

// ErrDims is returned when a matrix is constructed with dimensions that do
// not match its backing slice.
var ErrDims = errors.New("dimension mismatch")

// Buffer is a typed numeric container ready for publishing. Implementations
// in this package alias caller storage; see the package documentation for
// the lifetime contract.
type Buffer interface {
	// Descriptor reports the element type tag and width.
	Descriptor() wire.Descriptor
	// Len reports the number of elements.
	Len() int
	// Shape reports the dimension string, e.g. "(100,)" or "(3,4)".
	Shape() string
	// Bytes returns the elements as raw native-endian bytes without
	// copying. Empty containers return nil.
	Bytes() []byte
}

// Vector adapts a slice as a rank-1 buffer. The conversion is free:
//
//	xs := []float64{1, 2, 3}
//	buf := buffers.Vector[float64](xs)
//
// buf shares xs's backing array.
type Vector[T wire.Scalar] []T

// Descriptor reports the element type of the vector.
func (v Vector[T]) Descriptor() wire.Descriptor { return wire.Of[T]() }

// Len reports the number of elements.
func (v Vector[T]) Len() int { return len(v) }

// Shape reports the rank-1 shape string "(N,)".
func (v Vector[T]) Shape() string { return wire.ShapeVector(len(v)) }

// Bytes returns the vector's elements as raw bytes, aliasing the backing
// array.
func (v Vector[T]) Bytes() []byte { return view(v) }

// Matrix is a rank-2 buffer over a row-major backing slice.
type Matrix[T wire.Scalar] struct {
	rows, cols int
	data       []T
}

// NewMatrix wraps data as a rows×cols matrix. The slice is aliased, not
// copied, and must hold exactly rows*cols elements.
func NewMatrix[T wire.Scalar](rows, cols int, data []T) (*Matrix[T], error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("%w: negative dimensions %dx%d", ErrDims, rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %dx%d needs %d elements, have %d",
			ErrDims, rows, cols, rows*cols, len(data))
	}
	return &Matrix[T]{rows: rows, cols: cols, data: data}, nil
}

// ZeroMatrix allocates a rows×cols matrix with all elements zero.
func ZeroMatrix[T wire.Scalar](rows, cols int) (*Matrix[T], error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("%w: negative dimensions %dx%d", ErrDims, rows, cols)
	}
	return &Matrix[T]{rows: rows, cols: cols, data: make([]T, rows*cols)}, nil
}

// Descriptor reports the element type of the matrix.
func (m *Matrix[T]) Descriptor() wire.Descriptor { return wire.Of[T]() }

// Len reports the total element count, rows×cols.
func (m *Matrix[T]) Len() int { return m.rows * m.cols }

// Shape reports the rank-2 shape string "(R,C)".
func (m *Matrix[T]) Shape() string { return wire.ShapeMatrix(m.rows, m.cols) }

// Rows reports the row count.
func (m *Matrix[T]) Rows() int { return m.rows }

// Cols reports the column count.
func (m *Matrix[T]) Cols() int { return m.cols }

// At returns the element at row r, column c. It panics when the index is
// out of range, like a slice access.
func (m *Matrix[T]) At(r, c int) T { return m.data[m.index(r, c)] }

// Set stores v at row r, column c. It panics when the index is out of
// range, like a slice access.
func (m *Matrix[T]) Set(r, c int, v T) { m.data[m.index(r, c)] = v }

// Data returns the row-major backing slice for bulk access.
func (m *Matrix[T]) Data() []T { return m.data }

// Bytes returns the matrix elements as raw bytes in row-major order,
// aliasing the backing array.
func (m *Matrix[T]) Bytes() []byte { return view(m.data) }

func (m *Matrix[T]) index(r, c int) int {
	if r < 0 || r >= m.rows || c < 0 || c >= m.cols {
		panic(fmt.Sprintf("buffers: index (%d,%d) out of range for %dx%d matrix",
			r, c, m.rows, m.cols))
	}
	return r*m.cols + c
}

// view reinterprets a slice's backing array as raw bytes without copying.
func view[T wire.Scalar](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	n := len(s) * int(unsafe.Sizeof(s[0]))
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n)
}
