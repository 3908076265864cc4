package telnet

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"io"
)

// compressDirection fixes which end of the pipe a session's single
// compression stream serves. Direction cannot change while a stream is
// active; only teardown clears it.
type compressDirection byte

const (
	compressNone compressDirection = iota
	compressInflate
	compressDeflate
)

// maxInflateDict is the DEFLATE sliding-window size: the most trailing
// decompressed bytes we keep around so a (*flate.Reader).Reset can resume
// decoding after a chunk ends mid-stream without losing back-references.
const maxInflateDict = 32768

// zlibHeaderSize is the two-byte RFC 1950 CMF/FLG header that precedes the
// raw DEFLATE body in every MCCP2 stream.
const zlibHeaderSize = 2

// compressor owns at most one active MCCP2 zlib stream, grounded on the
// only compression-bearing file anywhere in the retrieved corpus
// (data_reader.go), which reaches for compress/zlib - not a third-party
// codec - for this same concern, activating it with a single long-lived
// zlib.NewReader over its connection.
//
// This engine can't follow that shape exactly: data_reader.go's reader
// blocks on the underlying connection for more bytes, but this engine is
// handed whatever bytes are available in one Recv call and must never
// block. A zlib-framed SYNC_FLUSH stream runs dry mid-block between
// flushes, and both flate.Reader and zlib.Reader cache the first error
// they see (io.EOF or io.ErrUnexpectedEOF) on every later Read - so
// resuming decode once more bytes arrive needs a Reset. zlib.Reader's own
// Reset always re-parses a fresh two-byte header, which is wrong for
// resuming mid-stream, so this type consumes that header exactly once
// itself and drives the raw DEFLATE body through flate.Reader's Resetter
// with a rolling dictionary instead.
type compressor struct {
	direction compressDirection

	inBuf      *bytes.Buffer // feeds bytes to the inflate reader one Recv at a time
	headerDone bool          // true once the two-byte zlib header has been consumed
	inflate    io.ReadCloser // raw DEFLATE reader over inBuf, installed once headerDone
	dict       []byte        // trailing decompressed window, for Reset across chunks

	deflate *zlib.Writer
	outBuf  *bytes.Buffer // receives the deflate writer's compressed output
}

func newCompressor() *compressor {
	return &compressor{}
}

func (c *compressor) active() bool {
	return c.direction != compressNone
}

// beginInflate switches the session to processing inbound bytes as a
// zlib-framed MCCP2 stream. Returns a *ProtocolError (CodeBadValue) if a
// stream of either direction is already active.
func (c *compressor) beginInflate() *ProtocolError {
	if c.active() {
		return newError(CodeBadValue, false, "compression already initialized")
	}

	c.inBuf = &bytes.Buffer{}
	c.direction = compressInflate
	return nil
}

func (c *compressor) beginDeflate() *ProtocolError {
	if c.active() {
		return newError(CodeBadValue, false, "compression already initialized")
	}

	c.outBuf = &bytes.Buffer{}
	w, err := zlib.NewWriterLevel(c.outBuf, zlib.DefaultCompression)
	if err != nil {
		return newError(CodeCompress, true, "zlib: %v", err)
	}
	c.deflate = w
	c.direction = compressDeflate
	return nil
}

func (c *compressor) teardown() {
	if c.inflate != nil {
		_ = c.inflate.Close()
	}
	c.inflate = nil
	c.inBuf = nil
	c.headerDone = false
	c.dict = nil
	c.deflate = nil
	c.outBuf = nil
	c.direction = compressNone
}

// inflateChunk decompresses one inbound chunk with SYNC_FLUSH semantics.
// The first bytes of the stream are the two-byte zlib header (RFC 1950),
// consumed once and validated; everything after is raw DEFLATE, decoded
// exactly as a non-zlib-framed stream would be. The peer's writer flushes
// after every message, so a drained read against the currently buffered
// input means "wait for more bytes", not "stream over". flate.Reader
// treats both a clean io.EOF and a mid-block io.ErrUnexpectedEOF as
// terminal and caches whichever one it saw on every later Read, so either
// case here resets the decoder via flate.Resetter with a trailing
// dictionary of the last maxInflateDict decoded bytes, which preserves
// the sliding window a later back-reference may need.
func (c *compressor) inflateChunk(data []byte) ([]byte, *ProtocolError) {
	c.inBuf.Write(data)

	if !c.headerDone {
		if c.inBuf.Len() < zlibHeaderSize {
			return nil, nil
		}
		header := c.inBuf.Next(zlibHeaderSize)
		if perr := validateZlibHeader(header); perr != nil {
			return nil, perr
		}
		c.inflate = flate.NewReader(c.inBuf)
		c.headerDone = true
	}

	var out bytes.Buffer
	buf := make([]byte, 4096)
	for {
		n, err := c.inflate.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
		}
		switch {
		case err == io.EOF || err == io.ErrUnexpectedEOF:
			c.rememberDict(out.Bytes())
			if rerr := c.resetInflate(); rerr != nil {
				return out.Bytes(), rerr
			}
			return out.Bytes(), nil
		case err != nil:
			return out.Bytes(), newError(CodeCompress, true, "inflate: %v", err)
		case n == 0:
			c.rememberDict(out.Bytes())
			return out.Bytes(), nil
		}
	}
}

// validateZlibHeader checks the RFC 1950 CMF/FLG header MCCP2's zlib
// framing begins with: compression method 8 (DEFLATE), the FCHECK parity
// rule, and no preset dictionary (FDICT) - this engine has no side
// channel to supply one.
func validateZlibHeader(header []byte) *ProtocolError {
	cmf, flg := header[0], header[1]
	if cmf&0x0f != 8 {
		return newError(CodeCompress, true, "zlib header: unsupported compression method %d", cmf&0x0f)
	}
	if (uint16(cmf)<<8|uint16(flg))%31 != 0 {
		return newError(CodeCompress, true, "zlib header: check bits invalid")
	}
	if flg&0x20 != 0 {
		return newError(CodeCompress, true, "zlib header: preset dictionary not supported")
	}
	return nil
}

// rememberDict extends the rolling decompression dictionary with newly
// decoded bytes, trimming to the last maxInflateDict bytes.
func (c *compressor) rememberDict(decoded []byte) {
	if len(decoded) == 0 {
		return
	}
	c.dict = append(c.dict, decoded...)
	if len(c.dict) > maxInflateDict {
		c.dict = c.dict[len(c.dict)-maxInflateDict:]
	}
}

// resetInflate reinitializes the raw DEFLATE reader against the same
// backing buffer (now drained) with the current dictionary, so the next
// inflateChunk can resume decoding once more compressed bytes are
// appended to c.inBuf. This operates below the zlib framing, on the
// flate.Reader directly, since zlib.Reader's own Reset always expects a
// fresh header rather than a continuation of the current body.
func (c *compressor) resetInflate() *ProtocolError {
	resetter, ok := c.inflate.(flate.Resetter)
	if !ok {
		return newError(CodeCompress, true, "inflate: reader does not support reset")
	}
	if err := resetter.Reset(c.inBuf, c.dict); err != nil {
		return newError(CodeCompress, true, "inflate: reset: %v", err)
	}
	return nil
}

// deflateChunk compresses one outbound chunk through the zlib writer and
// flushes it so the remote's inflate side can process it immediately
// (SYNC_FLUSH). The zlib header precedes the first flush's output; no
// trailing Adler-32 checksum is ever written, since an MCCP2 stream has
// no defined end-of-compression operation short of the connection
// closing.
func (c *compressor) deflateChunk(data []byte) ([]byte, *ProtocolError) {
	if len(data) > 0 {
		if _, err := c.deflate.Write(data); err != nil {
			return nil, newError(CodeCompress, true, "deflate: %v", err)
		}
	}
	if err := c.deflate.Flush(); err != nil {
		return nil, newError(CodeCompress, true, "deflate: %v", err)
	}

	out := c.outBuf.Bytes()
	result := make([]byte, len(out))
	copy(result, out)
	c.outBuf.Reset()
	return result, nil
}
