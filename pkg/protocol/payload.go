package protocol

import "encoding/json"

// SimulatorFull is the data of a simulator_full notification.
type SimulatorFull struct {
	SimulatorName string `json:"simulatorName"`
	QueuePosition int    `json:"queuePosition"`
}

// Script references one script fired after a simulation loads.
type Script struct {
	Script string `json:"script"`
}

// Scripts is the data of a fire_sim_scripts notification.
type Scripts struct {
	Scripts []Script `json:"scripts"`
}

// ErrorPayload is the data of a generic error notification.
type ErrorPayload struct {
	Message string `json:"message"`
}

// MarshalPayload encodes v as the string data of an Envelope.
func MarshalPayload(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
