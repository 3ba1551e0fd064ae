package upstream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// FIFOExporter is the default LocalExporter: it communicates with an
// out-of-process exporter (the replica's own database-to-OSM-XML tool)
// over two named FIFOs. A result line beginning with "0" is success and
// names the output file to read; any other leading token is an error
// message.
type FIFOExporter struct {
	RequestFIFO string
	ResultFIFO  string
}

var _ LocalExporter = (*FIFOExporter)(nil)

// ExportLocalAOI writes a bbox request to RequestFIFO, blocks on
// ResultFIFO for the result line, and opens the resulting OSM XML file.
func (e *FIFOExporter) ExportLocalAOI(ctx context.Context, bbox BBox) (io.ReadCloser, error) {
	reqLine := fmt.Sprintf("%f,%f,%f,%f\n", bbox.South, bbox.West, bbox.North, bbox.East)

	if err := writeRequest(ctx, e.RequestFIFO, reqLine); err != nil {
		return nil, err
	}

	resultLine, err := readResult(ctx, e.ResultFIFO)
	if err != nil {
		return nil, err
	}

	fields := strings.SplitN(strings.TrimSpace(resultLine), " ", 2)
	if fields[0] != "0" {
		return nil, fmt.Errorf("upstream: local exporter failed: %s", resultLine)
	}
	if len(fields) != 2 {
		return nil, fmt.Errorf("upstream: local exporter result missing output path: %q", resultLine)
	}

	f, err := os.Open(fields[1])
	if err != nil {
		return nil, fmt.Errorf("upstream: open exported AOI %s: %w", fields[1], err)
	}
	return f, nil
}

func writeRequest(ctx context.Context, path, line string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("upstream: open request fifo %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("upstream: write request fifo: %w", err)
	}
	return nil
}

func readResult(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("upstream: open result fifo %s: %w", path, err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("upstream: read result fifo: %w", err)
		}
		return "", fmt.Errorf("upstream: result fifo closed with no output")
	}
	return scanner.Text(), nil
}
