package local

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"strconv"
)

func SerializeInt(value int) ([]byte, error) {
	buffer := &bytes.Buffer{}
	encoder := gob.NewEncoder(buffer)
	err := encoder.Encode(value)
	return buffer.Bytes(), err
}

func DeserializeInt(input []byte) (int, error) {
	output := 0
	decoder := gob.NewDecoder(bytes.NewBuffer(input))
	err := decoder.Decode(&output)
	return output, err
}

func SerializeObject[T any](data *T) ([]byte, error) {
	if data == nil {
		return nil, errors.New("cannot serialize nil object")
	}
	buffer := &bytes.Buffer{}
	encoder := gob.NewEncoder(buffer)
	err := encoder.Encode(data)
	return buffer.Bytes(), err
}

func DeserializeObject[T any](input []byte) (*T, error) {
	output := new(T)
	decoder := gob.NewDecoder(bytes.NewBuffer(input))
	err := decoder.Decode(&output)
	return output, err
}

// SerializeUID pads the UID so the keys are sorted in the same order as the UIDs
func SerializeUID(prefix string, uid uint64) []byte {
	return []byte(fmt.Sprintf("%s%010d", prefix, uid))
}

func DeserializeUID(prefix string, key []byte) uint64 {
	key = bytes.TrimPrefix(key, []byte(prefix))
	uid, _ := strconv.ParseUint(string(key), 10, 32)
	return uid
}
