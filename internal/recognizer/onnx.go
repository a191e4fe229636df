package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/MeKo-Tech/lipi/internal/mempool"
	"github.com/MeKo-Tech/lipi/internal/onnx"
	"github.com/MeKo-Tech/lipi/internal/script"
)

// ONNXModelPaths locates the CTC model and charset for one language.
type ONNXModelPaths struct {
	ModelPath string `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	DictPath  string `mapstructure:"dict_path" yaml:"dict_path" json:"dict_path"`
}

// ONNXConfig configures the ONNX Runtime CTC backend.
type ONNXConfig struct {
	// ModelsDir holds one sub-directory per language with model.onnx and dict.txt.
	ModelsDir        string
	Models           map[script.Language]ONNXModelPaths
	ImageHeight      int
	MaxWidth         int
	PadWidthMultiple int
	NumThreads       int
	LibraryPath      string
	GPU              onnx.GPUConfig
}

// DefaultONNXConfig returns the default ONNX backend configuration.
func DefaultONNXConfig() ONNXConfig {
	return ONNXConfig{
		ModelsDir:        "models",
		ImageHeight:      48,
		PadWidthMultiple: 8,
		GPU:              onnx.DefaultGPUConfig(),
	}
}

// Paths resolves the model and dictionary path for lang. Explicit entries
// win over the ModelsDir layout.
func (c ONNXConfig) Paths(lang script.Language) ONNXModelPaths {
	p := c.Models[lang]
	dir := filepath.Join(c.ModelsDir, string(lang))
	if p.ModelPath == "" {
		p.ModelPath = filepath.Join(dir, "model.onnx")
	}
	if p.DictPath == "" {
		p.DictPath = filepath.Join(dir, "dict.txt")
	}
	return p
}

// ONNXLoader loads CTC recognition models through ONNX Runtime.
type ONNXLoader struct {
	cfg ONNXConfig
}

// NewONNXLoader creates a loader for cfg.
func NewONNXLoader(cfg ONNXConfig) *ONNXLoader { return &ONNXLoader{cfg: cfg} }

// Load implements Loader. Without a pinned device the GPU is tried first
// when enabled, falling back to the CPU.
func (l *ONNXLoader) Load(_ context.Context, lang script.Language, device Device) (Model, Device, error) {
	paths := l.cfg.Paths(lang)
	if _, err := os.Stat(paths.ModelPath); err != nil {
		return nil, "", fmt.Errorf("model file not found: %s", paths.ModelPath)
	}
	charset, err := LoadCharset(paths.DictPath)
	if err != nil {
		return nil, "", err
	}

	tryGPU := l.cfg.GPU.UseGPU && device != DeviceCPU
	if err := onnx.InitRuntime(l.cfg.LibraryPath, tryGPU); err != nil {
		return nil, "", err
	}
	if tryGPU {
		m, err := l.newModel(paths.ModelPath, charset, l.cfg.GPU)
		if err == nil {
			return m, DeviceGPU, nil
		}
		if device == DeviceGPU {
			return nil, "", err
		}
		slog.Warn("GPU session failed, falling back to CPU", "language", string(lang), "error", err)
	}
	cpu := l.cfg.GPU
	cpu.UseGPU = false
	m, err := l.newModel(paths.ModelPath, charset, cpu)
	if err != nil {
		return nil, "", err
	}
	return m, DeviceCPU, nil
}

type ctcModel struct {
	session   *ort.DynamicAdvancedSession
	input     ort.InputOutputInfo
	output    ort.InputOutputInfo
	charset   *Charset
	height    int
	maxWidth  int
	padToMult int
}

func (l *ONNXLoader) newModel(modelPath string, charset *Charset, gpu onnx.GPUConfig) (*ctcModel, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("expected 1 input and 1 output, got %d and %d", len(inputs), len(outputs))
	}
	in, out := inputs[0], outputs[0]
	if len(in.Dimensions) != 4 {
		return nil, fmt.Errorf("expected 4D input tensor, got %dD", len(in.Dimensions))
	}
	height := l.cfg.ImageHeight
	if h := in.Dimensions[2]; h > 0 {
		height = int(h)
	}
	if height <= 0 {
		height = 48
	}

	opts, err := onnx.NewSessionOptions(gpu, l.cfg.NumThreads)
	if err != nil {
		return nil, err
	}
	defer func() { _ = opts.Destroy() }()

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{in.Name}, []string{out.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	slog.Debug("ONNX recognition session created",
		"model_path", modelPath,
		"charset_size", charset.Size(),
		"image_height", height,
		"gpu", gpu.UseGPU)
	return &ctcModel{
		session:   session,
		input:     in,
		output:    out,
		charset:   charset,
		height:    height,
		maxWidth:  l.cfg.MaxWidth,
		padToMult: l.cfg.PadWidthMultiple,
	}, nil
}

// Recognize implements Model.
func (m *ctcModel) Recognize(ctx context.Context, img *image.RGBA) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.session == nil {
		return "", errors.New("recognizer session is closed")
	}
	resized, err := ResizeForRecognition(img, m.height, m.maxWidth, m.padToMult)
	if err != nil {
		return "", fmt.Errorf("resize: %w", err)
	}
	ten, err := NormalizeForRecognition(resized)
	if err != nil {
		return "", fmt.Errorf("normalize: %w", err)
	}
	defer mempool.PutFloat32(ten.Data)

	input, err := ort.NewTensor(ort.NewShape(ten.Shape...), ten.Data)
	if err != nil {
		return "", fmt.Errorf("create input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	outputs := []ort.Value{nil}
	if err := m.session.Run([]ort.Value{input}, outputs); err != nil {
		return "", fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				_ = o.Destroy()
			}
		}
	}()
	logits, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return "", fmt.Errorf("expected float32 tensor, got %T", outputs[0])
	}

	shape := logits.GetShape()
	decoded := DecodeCTCGreedy(logits.GetData(), shape, 0, classesFirst(shape, m.charset.Size()+1))
	if len(decoded) == 0 {
		return "", errors.New("empty decoded output")
	}
	seq := decoded[0]
	slog.Debug("CTC decoded", "chars", len(seq.Collapsed), "confidence", SequenceConfidence(seq.CollapsedProb))
	return m.charset.Decode(seq.Collapsed), nil
}

// Close implements Model.
func (m *ctcModel) Close() error {
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}
