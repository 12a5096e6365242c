package diag

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"nesra/session"
)

// StatusStruct flattens st into a protobuf Struct with lowerCamel keys.
func StatusStruct(st session.Status) (*structpb.Struct, error) {
	pending := make([]interface{}, 0, len(st.Pending))
	for _, id := range st.Pending {
		pending = append(pending, fmt.Sprintf("%02X", id))
	}
	queued := make([]interface{}, 0, len(st.Queued))
	for _, id := range st.Queued {
		queued = append(queued, id)
	}

	return structpb.NewStruct(map[string]interface{}{
		"state":          st.State.String(),
		"inFlight":       st.InFlight,
		"pending":        pending,
		"queued":         queued,
		"queueDropped":   st.QueueDropped,
		"watched":        st.Watched,
		"channelLen":     st.ChannelLen,
		"channelDropped": st.ChannelDropped,
		"frames":         st.Frames,
		"resetDetected":  st.ResetDetected,
		"fingerprint":    st.Fingerprint,
		"hash":           st.Hash,
		"user":           st.User,
		"gameId":         st.GameID,
		"gameTitle":      st.GameTitle,
		"sampler": map[string]interface{}{
			"buffers":  st.Sampler.Buffers,
			"events":   st.Sampler.Events,
			"overruns": st.Sampler.Overruns,
		},
		"samplerStarts": st.SamplerStarts,
		"evicted":       st.Evicted,
		"stale":         st.Stale,
		"timeouts":      st.Timeouts,
	})
}

// Summary renders the fields a status line needs.
func Summary(s *structpb.Struct) string {
	f := s.GetFields()
	state := f["state"].GetStringValue()
	if title := f["gameTitle"].GetStringValue(); title != "" {
		return fmt.Sprintf("%s: %s", state, title)
	}
	return state
}
