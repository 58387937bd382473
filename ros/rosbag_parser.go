// Package ros bridges navbench and ROS: message types, a rosbridge client and rosbag reading.
package ros

import (
	"encoding/json"
	"io"
	"os"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()

	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to create ros bag, error")
	}

	return rb, nil
}

// AllMessagesForTopic returns all messages for a specific topic in the ros bag.
func AllMessagesForTopic(rb *rosbag.RosBag, topic string) ([]map[string]interface{}, error) {
	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(t string) bool { return t == topic },
		false,
	); err != nil {
		return nil, errors.Wrapf(err, "error while parsing bag to JSON")
	}

	msgs := rb.TopicsAsJSON[topic]
	if msgs == nil {
		return nil, errors.Errorf("no messages for topic %s", topic)
	}

	all := []map[string]interface{}{}

	for {
		data, err := msgs.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		message := map[string]interface{}{}
		err = json.Unmarshal(data, &message)
		if err != nil {
			return nil, err
		}

		all = append(all, message)
	}

	return all, nil
}

// BagMessage is a decoded bag message along with its record time.
type BagMessage[T any] struct {
	Stamp Time
	Data  T
}

// DecodeBagMessages decodes the generic JSON messages returned by AllMessagesForTopic into T.
func DecodeBagMessages[T any](raw []map[string]interface{}) ([]BagMessage[T], error) {
	decoded := make([]BagMessage[T], 0, len(raw))
	for i, message := range raw {
		md, err := json.Marshal(message)
		if err != nil {
			return nil, err
		}
		var envelope struct {
			Meta Time
			Data T
		}
		if err := json.Unmarshal(md, &envelope); err != nil {
			return nil, errors.Wrapf(err, "failed to decode bag message %d", i)
		}
		decoded = append(decoded, BagMessage[T]{Stamp: envelope.Meta, Data: envelope.Data})
	}
	return decoded, nil
}

// SolverStatesFromBag reads every SolverStateArray recorded on topic.
func SolverStatesFromBag(filename, topic string) ([]BagMessage[SolverStateArray], error) {
	rb, err := ReadBag(filename)
	if err != nil {
		return nil, err
	}
	raw, err := AllMessagesForTopic(rb, topic)
	if err != nil {
		return nil, err
	}
	return DecodeBagMessages[SolverStateArray](raw)
}
