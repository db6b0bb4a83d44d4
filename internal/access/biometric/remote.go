package biometric

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

// Fully-qualified methods served by the inference service.  Requests and
// responses are google.protobuf.Struct so the service can evolve its
// fields without a shared generated package.
const (
	MethodMatchFace   = "/smartaccess.biometric.v1.Verifier/MatchFace"
	MethodVerifyVoice = "/smartaccess.biometric.v1.Verifier/VerifyVoice"
	ServiceName       = "smartaccess.biometric.v1.Verifier"
)

// RemoteVerifier implements FaceMatcher and VoiceVerifier over gRPC.
type RemoteVerifier struct {
	conn *grpc.ClientConn
}

// DialRemote creates a lazily-connecting client for addr.
func DialRemote(addr string, opts ...grpc.DialOption) (*RemoteVerifier, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial verifier %s: %w", addr, err)
	}
	return &RemoteVerifier{conn: conn}, nil
}

func NewRemoteVerifier(conn *grpc.ClientConn) *RemoteVerifier {
	return &RemoteVerifier{conn: conn}
}

func (r *RemoteVerifier) Close() error { return r.conn.Close() }

// Check asks the standard gRPC health service whether the verifier is
// serving.
func (r *RemoteVerifier) Check(ctx context.Context) error {
	resp, err := healthpb.NewHealthClient(r.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("verifier status %s", resp.GetStatus())
	}
	return nil
}

func (r *RemoteVerifier) MatchFace(ctx context.Context, sample, template []byte) (bool, error) {
	req, err := structpb.NewStruct(map[string]any{
		"sample":   base64.StdEncoding.EncodeToString(sample),
		"template": base64.StdEncoding.EncodeToString(template),
	})
	if err != nil {
		return false, err
	}
	resp := &structpb.Struct{}
	if err := r.conn.Invoke(ctx, MethodMatchFace, req, resp); err != nil {
		return false, err
	}
	v, ok := resp.GetFields()["match"]
	if !ok {
		return false, fmt.Errorf("face response missing match")
	}
	return v.GetBoolValue(), nil
}

func (r *RemoteVerifier) VerifyVoice(ctx context.Context, sample, template []byte, challenge string) (VoiceResult, error) {
	req, err := structpb.NewStruct(map[string]any{
		"sample":    base64.StdEncoding.EncodeToString(sample),
		"template":  base64.StdEncoding.EncodeToString(template),
		"challenge": challenge,
	})
	if err != nil {
		return VoiceResult{}, err
	}
	resp := &structpb.Struct{}
	if err := r.conn.Invoke(ctx, MethodVerifyVoice, req, resp); err != nil {
		return VoiceResult{}, err
	}

	f := resp.GetFields()
	speaker, ok := f["speaker_similarity"]
	if !ok {
		return VoiceResult{}, fmt.Errorf("voice response missing speaker_similarity")
	}
	res := VoiceResult{
		SpeakerSimilarity: speaker.GetNumberValue(),
		AudioGenuine:      f["audio_genuine"].GetBoolValue(),
		Transcription:     f["transcription"].GetStringValue(),
	}
	if ts, ok := f["transcription_similarity"]; ok {
		res.TranscriptionSimilarity = ts.GetNumberValue()
		res.Scored = true
	}
	return res, nil
}
