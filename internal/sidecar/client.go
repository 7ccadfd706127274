package sidecar

// #region imports
import (
	"context"
	"fmt"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/danielpatrickdp/mcmc-gan/go-controller/internal/genob"
)

// #endregion

// #region wire-types

// ServiceName is the fully qualified gRPC service the Python sidecar
// registers.
const ServiceName = "genosim.Sidecar"

// SimulateRequest asks for replicate matrices at one parameter point.
type SimulateRequest struct {
	Point       []float64 `json:"point"`
	NumReps     int       `json:"num_reps"`
	Seed        uint64    `json:"seed"`
	Parallelism int       `json:"parallelism"` // 0 = all cores
}

// SimulateResponse carries the simulated matrices.
type SimulateResponse struct {
	Matrices []genob.Matrix `json:"matrices"`
}

// GenerateRequest asks for a labeled real/simulated train+val dataset.
// Center/Spread, when present, make the sidecar draw per-replicate
// simulation points from per-parameter Gaussians.
type GenerateRequest struct {
	NumReps     int       `json:"num_reps"`
	Point       []float64 `json:"point"`
	Center      []float64 `json:"center,omitempty"`
	Spread      []float64 `json:"spread,omitempty"`
	Seed        uint64    `json:"seed"`
	Parallelism int       `json:"parallelism"`
}

// GenerateResponse carries the labeled dataset.
type GenerateResponse struct {
	Dataset genob.Dataset `json:"dataset"`
}

// FitRequest trains the sidecar's discriminator on a labeled dataset.
type FitRequest struct {
	Dataset      genob.Dataset `json:"dataset"`
	Epochs       int           `json:"epochs"`
	LearningRate float64       `json:"learning_rate"`
	Seed         uint64        `json:"seed"`
}

// FitResponse reports validation accuracy and where the trained model
// artifact was saved.
type FitResponse struct {
	ValidationAccuracy float64 `json:"validation_accuracy"`
	ModelPath          string  `json:"model_path"`
}

// ScoreRequest scores matrices with the current discriminator.
type ScoreRequest struct {
	Matrices []genob.Matrix `json:"matrices"`
}

// ScoreResponse carries one logit per matrix.
type ScoreResponse struct {
	Logits []float64 `json:"logits"`
}

// ModelRequest names a discriminator artifact to load.
type ModelRequest struct {
	Path string `json:"path"`
}

// ModelResponse echoes the resolved artifact path.
type ModelResponse struct {
	Path string `json:"path"`
}

// #endregion wire-types

// #region client

// Invoker is the unary-call surface of a gRPC connection, split out so
// tests can inject a fake without a live server.
type Invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}

// Client wraps the gRPC connection to the Python simulation/training
// sidecar. It implements both the data generation bridge and the
// discriminator training interface. Calls are blocking with no
// deadline: the controller's liveness depends on the sidecar's.
type Client struct {
	conn        *grpc.ClientConn
	inv         Invoker
	parallelism int
	modelPath   string
}

// New connects to the sidecar. parallelism bounds the sidecar's
// replicate fan-out; 0 means all cores.
func New(addr string, parallelism int) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, inv: conn, parallelism: parallelism}, nil
}

// NewWithInvoker creates a Client with an injected call surface.
// Used for testing without a real gRPC connection.
func NewWithInvoker(inv Invoker) *Client {
	return &Client{inv: inv}
}

// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// ModelPath returns where the sidecar last saved the trained
// discriminator artifact.
func (c *Client) ModelPath() string { return c.modelPath }

func (c *Client) invoke(method string, req, resp any) error {
	return c.inv.Invoke(context.Background(), "/"+ServiceName+"/"+method, req, resp, grpc.CallContentSubtype(CodecName))
}

// #endregion client

// #region bridge

// Simulate implements the bridge's density-evaluation side. An
// out-of-range status from the sidecar becomes a *genob.SimulationError
// so the chain rejects the single proposal instead of aborting.
func (c *Client) Simulate(point []float64, numReps int, seed uint64) ([]genob.Matrix, error) {
	var resp SimulateResponse
	err := c.invoke("Simulate", SimulateRequest{
		Point: point, NumReps: numReps, Seed: seed, Parallelism: c.parallelism,
	}, &resp)
	if err != nil {
		return nil, simulationOr(err, point, "simulate rpc")
	}
	return resp.Matrices, nil
}

// GenerateTraining implements the bridge's training-data side.
func (c *Client) GenerateTraining(numReps int, point []float64, dist *genob.PosteriorDist, seed uint64) (genob.Dataset, error) {
	req := GenerateRequest{NumReps: numReps, Point: point, Seed: seed, Parallelism: c.parallelism}
	if dist != nil {
		req.Center = dist.Center
		req.Spread = dist.Spread
	}
	var resp GenerateResponse
	if err := c.invoke("Generate", req, &resp); err != nil {
		return genob.Dataset{}, simulationOr(err, point, "generate rpc")
	}
	return resp.Dataset, nil
}

// simulationOr maps sidecar out-of-range/invalid-argument statuses to
// SimulationError and wraps everything else.
func simulationOr(err error, point []float64, op string) error {
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.OutOfRange, codes.InvalidArgument:
			return &genob.SimulationError{Point: point, Reason: st.Message()}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// #endregion bridge

// #region trainer

// Fit implements the discriminator training interface.
func (c *Client) Fit(d genob.Dataset, epochs int, learningRate float64, seed uint64) (float64, error) {
	var resp FitResponse
	err := c.invoke("Fit", FitRequest{
		Dataset: d, Epochs: epochs, LearningRate: learningRate, Seed: seed,
	}, &resp)
	if err != nil {
		return 0, fmt.Errorf("fit rpc: %w", err)
	}
	if resp.ModelPath != "" {
		c.modelPath = resp.ModelPath
		log.Printf("[SIDECAR] discriminator saved to %s", resp.ModelPath)
	}
	return resp.ValidationAccuracy, nil
}

// Score implements the discriminator scoring interface.
func (c *Client) Score(mats []genob.Matrix) ([]float64, error) {
	var resp ScoreResponse
	if err := c.invoke("Score", ScoreRequest{Matrices: mats}, &resp); err != nil {
		return nil, fmt.Errorf("score rpc: %w", err)
	}
	return resp.Logits, nil
}

// LoadModel makes the sidecar load a pretrained discriminator artifact
// in lieu of training one from scratch.
func (c *Client) LoadModel(path string) error {
	var resp ModelResponse
	if err := c.invoke("LoadModel", ModelRequest{Path: path}, &resp); err != nil {
		return fmt.Errorf("load model rpc: %w", err)
	}
	c.modelPath = resp.Path
	return nil
}

// #endregion trainer
