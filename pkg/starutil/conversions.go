package starutil

import (
	"github.com/pkg/errors"

	"go.starlark.net/starlark"
)

// IterableToGoList converts a starlark list or tuple of strings.
func IterableToGoList(list starlark.Iterable) (out []string, err error) {
	iterator := list.Iterate()
	defer iterator.Done()
	var val starlark.Value
	for iterator.Next(&val) {
		var strValue string
		strValue, err = ValueToString(val)
		if err != nil {
			return
		}
		out = append(out, strValue)
	}
	return
}

// StringOrList accepts either a single string or an iterable of strings.
func StringOrList(val starlark.Value) ([]string, error) {
	switch v := val.(type) {
	case starlark.String:
		return []string{v.GoString()}, nil
	case starlark.Iterable:
		return IterableToGoList(v)
	}
	return nil, ErrIncorrectType{Got: val.Type(), Want: "string or list"}
}

func ValueToString(val starlark.Value) (out string, err error) {
	switch v := val.(type) {
	case starlark.String:
		out = v.GoString()
	case starlark.Int:
		out = v.String()
	case starlark.Bool:
		if v {
			out = "true"
		} else {
			out = "false"
		}
	default:
		return "", errors.Errorf("don't know how to cast type %q into a string", v.Type())
	}
	return
}

func DictToGoStringMap(dict *starlark.Dict) (out map[string]string, err error) {
	out = make(map[string]string)
	for _, key := range dict.Keys() {
		val, _, _ := dict.Get(key)
		keyString, err := ValueToString(key)
		if err != nil {
			return nil, err
		}
		valString, err := ValueToString(val)
		if err != nil {
			return nil, err
		}
		out[keyString] = valString
	}
	return
}
