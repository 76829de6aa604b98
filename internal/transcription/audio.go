package transcription

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/meeting-diarizer/internal/audio"
)

// NormalizeAudio converts any audio file ffmpeg can read into raw 16kHz mono
// PCM16 in tempDir and returns the output path.
func NormalizeAudio(ctx context.Context, inputPath, tempDir string) (string, error) {
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	outputPath := filepath.Join(tempDir, fmt.Sprintf("normalized_%s.pcm", uuid.New().String()))

	cmd := exec.CommandContext(ctx, "ffmpeg", ffmpegArgs(inputPath, outputPath)...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, string(output))
	}

	return outputPath, nil
}

// ffmpegArgs builds the conversion command line. Raw .pcm input has no
// header, so it is declared as 16kHz mono PCM16.
func ffmpegArgs(inputPath, outputPath string) []string {
	rate := strconv.Itoa(audio.SampleRate)
	var args []string
	if strings.EqualFold(filepath.Ext(inputPath), ".pcm") {
		args = append(args, "-f", "s16le", "-ar", rate, "-ac", "1")
	}
	return append(args,
		"-i", inputPath,
		"-ar", rate,
		"-ac", "1",
		"-f", "s16le",
		"-c:a", "pcm_s16le",
		"-y",
		outputPath,
	)
}

// LoadPCM reads a raw PCM16 file produced by NormalizeAudio. A trailing odd
// byte is dropped.
func LoadPCM(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pcm: %w", err)
	}
	return data[:len(data)-len(data)%audio.BytesPerSample], nil
}

// ValidateAudioFormat checks if the file format is supported
func ValidateAudioFormat(filename string) bool {
	return slices.Contains(supportedFormats, strings.ToLower(filepath.Ext(filename)))
}

var supportedFormats = []string{".mp3", ".wav", ".m4a", ".ogg", ".flac", ".webm", ".aac", ".wma", ".pcm"}
