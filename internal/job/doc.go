package job

import "encoding/json"

// ToJSON serializes a job to its storage/wire document. Field tags on Job
// already match the wire shape, so this is a direct marshal.
func ToJSON(j *Job) ([]byte, error) {
	return json.Marshal(j)
}

// FromJSON deserializes a job document written by ToJSON.
func FromJSON(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	return &j, nil
}
