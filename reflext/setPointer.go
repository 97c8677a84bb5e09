package reflext

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// TypeMismatchError is returned by SetPointer when the destination cannot hold the source
// value. It always indicates a programming error in the caller.
type TypeMismatchError struct {
	Want reflect.Type
	Got  reflect.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("Value and pointer incompatible types: want %v, got %v", e.Want, e.Got)
}

// SetPointer stores srcValue into the variable dstPtr points to. The types must match
// exactly, except that an interface destination accepts any value implementing it. No
// conversion is attempted.
func SetPointer(dstPtr, srcValue interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch rerr := r.(type) {
			case error:
				err = rerr
			case string:
				err = errors.New(rerr)
			default:
				err = errors.Errorf("Panic in reflective code: %s", rerr)
			}
		}
	}()

	dstPtrRv := reflect.ValueOf(dstPtr)
	if dstPtrRv.Kind() != reflect.Ptr || dstPtrRv.IsNil() {
		return &TypeMismatchError{Want: reflect.TypeOf(dstPtr), Got: reflect.TypeOf(srcValue)}
	}

	valueRv := reflect.ValueOf(srcValue)
	if !valueRv.IsValid() {
		// A nil interface can only land in a destination that accepts nil.
		switch dstPtrRv.Elem().Kind() {
		case reflect.Interface, reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			dstPtrRv.Elem().Set(reflect.Zero(dstPtrRv.Elem().Type()))
			return nil
		}
		return &TypeMismatchError{Want: dstPtrRv.Elem().Type(), Got: nil}
	}

	dstType := dstPtrRv.Elem().Type()
	if dstType != valueRv.Type() && !(dstType.Kind() == reflect.Interface && valueRv.Type().Implements(dstType)) {
		return &TypeMismatchError{Want: dstType, Got: valueRv.Type()}
	}
	dstPtrRv.Elem().Set(valueRv)
	return nil
}
