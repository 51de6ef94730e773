package portfoliocad

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// DefaultName is given to images written without a name.
const DefaultName = "image"

// ImageRecord is one stored image. Data is a data URL and is never
// validated, Timestamp is the time of the latest write in ms since epoch.
type ImageRecord struct {
	ID        string `json:"id"`
	Data      string `json:"data"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
}

func encodeRecord(r *ImageRecord) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrapf(err, "could not encode image %s", r.ID)
	}

	return b, nil
}

func decodeRecord(id string, raw []byte) (*ImageRecord, error) {
	var r ImageRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, errors.Wrapf(err, "image %s is not a valid record", id)
	}

	return &r, nil
}

// dataField pulls only the data URL out of an encoded record
func dataField(id string, raw []byte) (string, error) {
	if !gjson.ValidBytes(raw) {
		return "", errors.Errorf("image %s is not a valid record", id)
	}

	return gjson.GetBytes(raw, "data").String(), nil
}
