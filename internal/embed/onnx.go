package embed

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNX runs a local MiniLM-style sentence-embedding model through
// onnxruntime. Encoding is bit-deterministic for fixed model weights, so
// evaluation metrics are reproducible across runs. The model loads lazily on
// first use and is reused for the process lifetime; the runtime session is
// not safe for concurrent Run calls, so a mutex serializes inference.
type ONNX struct {
	mu sync.Mutex

	modelPath string
	vocabPath string
	libPath   string
	dim       int
	maxSeqLen int

	session   *ort.AdvancedSession
	inputs    []*ort.Tensor[int64]
	inputName []string
	output    *ort.Tensor[float32]
	vocab     map[string]int64
	inited    bool

	clsID, sepID, padID, unkID int64
}

type ONNXOptions struct {
	ModelPath     string
	VocabPath     string
	Dimension     int
	MaxSeqLen     int
	SharedLibPath string
}

func NewONNX(opts ONNXOptions) *ONNX {
	maxSeq := opts.MaxSeqLen
	if maxSeq <= 0 {
		maxSeq = 128
	}
	return &ONNX{
		modelPath: opts.ModelPath,
		vocabPath: opts.VocabPath,
		libPath:   opts.SharedLibPath,
		dim:       opts.Dimension,
		maxSeqLen: maxSeq,
	}
}

func (o *ONNX) Dim() int {
	return o.dim
}

func (o *ONNX) initOnce() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inited {
		return nil
	}

	if o.libPath != "" {
		ort.SetSharedLibraryPath(o.libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("onnx init environment: %w", err)
	}

	vocab, err := loadVocab(o.vocabPath)
	if err != nil {
		return fmt.Errorf("load vocab: %w", err)
	}
	o.vocab = vocab
	for token, field := range map[string]*int64{
		"[CLS]": &o.clsID,
		"[SEP]": &o.sepID,
		"[PAD]": &o.padID,
		"[UNK]": &o.unkID,
	} {
		id, ok := vocab[token]
		if !ok {
			return fmt.Errorf("vocab is missing special token %s", token)
		}
		*field = id
	}

	inputs, outputs, err := ort.GetInputOutputInfo(o.modelPath)
	if err != nil {
		return fmt.Errorf("onnx get input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return fmt.Errorf("onnx model has no inputs or outputs")
	}

	// Fixed [1, maxSeqLen] shapes for every declared input (input_ids,
	// attention_mask, and token_type_ids when the export includes it);
	// shorter sequences are padded.
	inputShape := ort.NewShape(1, int64(o.maxSeqLen))
	inputValues := make([]ort.Value, len(inputs))
	for i := range inputs {
		tensor, err := ort.NewTensor(inputShape, make([]int64, o.maxSeqLen))
		if err != nil {
			o.destroyTensors()
			return fmt.Errorf("onnx new input tensor: %w", err)
		}
		o.inputs = append(o.inputs, tensor)
		o.inputName = append(o.inputName, inputs[i].Name)
		inputValues[i] = tensor
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(o.maxSeqLen), int64(o.dim)))
	if err != nil {
		o.destroyTensors()
		return fmt.Errorf("onnx new output tensor: %w", err)
	}
	o.output = outputTensor

	outputNames := []string{outputs[0].Name}
	session, err := ort.NewAdvancedSession(o.modelPath, o.inputName, outputNames,
		inputValues, []ort.Value{o.output}, nil)
	if err != nil {
		o.destroyTensors()
		return fmt.Errorf("onnx new session: %w", err)
	}
	o.session = session
	o.inited = true
	return nil
}

func (o *ONNX) destroyTensors() {
	for _, t := range o.inputs {
		t.Destroy()
	}
	o.inputs = nil
	o.inputName = nil
	if o.output != nil {
		o.output.Destroy()
		o.output = nil
	}
}

// Encode tokenizes and embeds each text, mean-pooling the hidden states over
// the attention mask and normalizing to unit length.
func (o *ONNX) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrNoInput
	}
	if err := o.initOnce(); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := o.encodeOne(text)
		if err != nil {
			return nil, fmt.Errorf("encode text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (o *ONNX) encodeOne(text string) ([]float32, error) {
	ids := o.tokenize(text)
	seqLen := len(ids)

	o.mu.Lock()
	defer o.mu.Unlock()

	for i, name := range o.inputName {
		data := o.inputs[i].GetData()
		for j := 0; j < o.maxSeqLen; j++ {
			data[j] = 0
		}
		switch {
		case strings.Contains(name, "mask"):
			for j := 0; j < seqLen; j++ {
				data[j] = 1
			}
		case strings.Contains(name, "type"):
			// single-segment input, all zeros
		default:
			for j := 0; j < o.maxSeqLen; j++ {
				data[j] = o.padID
			}
			copy(data, ids)
		}
	}

	if err := o.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	// Mean pooling over the real tokens of last_hidden_state [1, seq, dim].
	hidden := o.output.GetData()
	vec := make([]float32, o.dim)
	for pos := 0; pos < seqLen; pos++ {
		row := hidden[pos*o.dim : (pos+1)*o.dim]
		for d, v := range row {
			vec[d] += v
		}
	}
	for d := range vec {
		vec[d] /= float32(seqLen)
	}
	Normalize(vec)
	return vec, nil
}

// tokenize lowercases, splits on whitespace and punctuation, and applies
// greedy WordPiece matching with ## continuations, bracketed by [CLS] and
// [SEP] and truncated to maxSeqLen.
func (o *ONNX) tokenize(text string) []int64 {
	ids := []int64{o.clsID}

	for _, word := range basicTokens(text) {
		for _, id := range o.wordpiece(word) {
			if len(ids) >= o.maxSeqLen-1 {
				break
			}
			ids = append(ids, id)
		}
	}

	ids = append(ids, o.sepID)
	return ids
}

func (o *ONNX) wordpiece(word string) []int64 {
	var pieces []int64
	runes := []rune(word)
	start := 0
	for start < len(runes) {
		end := len(runes)
		var matched int64 = -1
		for end > start {
			candidate := string(runes[start:end])
			if start > 0 {
				candidate = "##" + candidate
			}
			if id, ok := o.vocab[candidate]; ok {
				matched = id
				break
			}
			end--
		}
		if matched < 0 {
			return []int64{o.unkID}
		}
		pieces = append(pieces, matched)
		start = end
	}
	return pieces
}

func basicTokens(text string) []string {
	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func loadVocab(path string) (map[string]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vocab := make(map[string]int64)
	sc := bufio.NewScanner(f)
	var id int64
	for sc.Scan() {
		token := strings.TrimSpace(sc.Text())
		if token != "" {
			vocab[token] = id
		}
		id++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("vocab file %s is empty", path)
	}
	return vocab, nil
}
