package convert

import (
	"fmt"
	"io"
	"sort"

	"github.com/robolake/robolake/internal/source"
)

// TopicInfo summarizes one channel of a recording.
type TopicInfo struct {
	Topic        string
	Type         string
	MessageCount int64
}

// Summary describes a recording without converting it.
type Summary struct {
	Topics       []TopicInfo
	MessageCount int64
	DecodeErrors int64
	StartTime    int64 // nanoseconds; 0 when the recording is empty
	EndTime      int64 // nanoseconds; 0 when the recording is empty
}

// Duration returns the recording length in seconds.
func (s *Summary) Duration() float64 {
	if s.EndTime <= s.StartTime {
		return 0
	}
	return float64(s.EndTime-s.StartTime) / 1e9
}

// Summarize scans a source once and reports its topics, message counts, and
// time range. Decode failures are counted, not fatal.
func Summarize(src source.Source) (*Summary, error) {
	summary := &Summary{}
	byTopic := make(map[string]*TopicInfo)

	for {
		rec, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if _, ok := source.AsDecodeError(err); ok {
				summary.DecodeErrors++
				continue
			}
			return nil, fmt.Errorf("convert: failed to scan source: %w", err)
		}

		info, ok := byTopic[rec.Topic]
		if !ok {
			info = &TopicInfo{Topic: rec.Topic, Type: rec.Type}
			byTopic[rec.Topic] = info
		}
		info.MessageCount++
		summary.MessageCount++

		if summary.MessageCount == 1 || rec.ReceivedTime < summary.StartTime {
			summary.StartTime = rec.ReceivedTime
		}
		if rec.ReceivedTime > summary.EndTime {
			summary.EndTime = rec.ReceivedTime
		}
	}

	topics := make([]string, 0, len(byTopic))
	for topic := range byTopic {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	for _, topic := range topics {
		summary.Topics = append(summary.Topics, *byTopic[topic])
	}
	return summary, nil
}
