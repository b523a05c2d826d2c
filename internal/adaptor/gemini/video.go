package gemini

import (
	"context"
	"errors"
	"time"

	"creatorlab/internal/adaptor"
	"creatorlab/internal/domain"
	"creatorlab/internal/metrics"
	"creatorlab/internal/poller"
)

// GenerateVideo submits a long-running synthesis operation and drives the
// poller until it reaches a terminal state, so callers see a synchronous
// result. The provider's async shape never leaks past this method.
func (a *Adaptor) GenerateVideo(ctx context.Context, req adaptor.VideoRequest) (*adaptor.VideoResult, error) {
	started := time.Now()

	operation, err := a.submitVideo(ctx, req)
	if err != nil {
		metrics.ObserveAdaptorCall(AdaptorID, string(domain.CapabilityVideo), "error", time.Since(started))
		return nil, &domain.ProviderError{AdaptorID: AdaptorID, Op: "generateVideo", Cause: err}
	}

	job := &domain.GenerationJob{
		Operation:    operation,
		SubmittedAt:  time.Now(),
		PollInterval: a.pollInterval,
		MaxWait:      a.maxWait,
		Status:       domain.JobStatusSubmitted,
	}

	if err := a.poller.Wait(ctx, job, a.videoProbe(job.Operation)); err != nil {
		status := "failed"
		if errors.Is(err, domain.ErrJobTimedOut) {
			status = "timed_out"
		}
		metrics.ObserveAdaptorCall(AdaptorID, string(domain.CapabilityVideo), status, time.Since(started))
		return nil, err
	}

	metrics.ObserveAdaptorCall(AdaptorID, string(domain.CapabilityVideo), "success", time.Since(started))
	return &adaptor.VideoResult{
		URL:        job.ArtifactURL,
		Duration:   req.Duration,
		Resolution: req.Resolution,
	}, nil
}

// submitVideo starts the operation and returns its handle.
func (a *Adaptor) submitVideo(ctx context.Context, req adaptor.VideoRequest) (string, error) {
	payload := predictRequest{
		Instances: []videoInstance{{Prompt: req.Prompt}},
		Parameters: videoParameters{
			DurationSeconds: req.Duration,
			Resolution:      req.Resolution,
		},
	}
	var resp operationResponse
	if err := a.invoke(ctx, "models/"+a.modelID+":predictLongRunning", payload, &resp); err != nil {
		return "", err
	}
	if resp.Name == "" {
		return "", errors.New("provider returned no operation name")
	}
	return resp.Name, nil
}

// videoProbe converts one operation GET into a poller probe result. A
// transport failure returns an error (retried by the poller); only an
// explicit terminal payload from the provider decides the job's fate.
func (a *Adaptor) videoProbe(operation string) poller.Probe {
	return func(ctx context.Context) (poller.ProbeResult, error) {
		var op operationResponse
		if err := a.get(ctx, operation, &op); err != nil {
			return poller.ProbeResult{}, err
		}
		if !op.Done {
			return poller.ProbeResult{}, nil
		}
		if op.Error != nil {
			return poller.ProbeResult{Done: true, Err: op.Error.Message}, nil
		}
		if op.Response != nil {
			samples := op.Response.GenerateVideoResponse.GeneratedSamples
			if len(samples) > 0 && samples[0].Video.URI != "" {
				return poller.ProbeResult{Done: true, ArtifactURL: samples[0].Video.URI}, nil
			}
		}
		return poller.ProbeResult{Done: true, Err: "operation finished without a video sample"}, nil
	}
}
