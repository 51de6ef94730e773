package idb

import (
	"bufio"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

type parser struct {
	totalSize      int
	currentCmdSize int
	totalCommands  int
	currentLine    int
}

// parse replays every complete command of r through cb and returns the
// number of bytes those commands occupy. A torn trailing command is
// reported as io.ErrUnexpectedEOF together with the size of the valid prefix.
func (p *parser) parse(r *bufio.Reader, cb func(cmd command) error) (int, error) {
	for {
		p.currentCmdSize = 0

		if _, err := r.Peek(1); err != nil {
			if err == io.EOF {
				return p.totalSize, nil
			}

			return p.totalSize, errors.Wrap(ErrSourceFileReadFailed, err.Error())
		}

		segments, err := p.resolveRespArrayFromLine(r)
		if err != nil {
			return p.totalSize, err
		}

		cmdCode, err := p.resolveRespCommandCode(r)
		if err != nil {
			return p.totalSize, err
		}

		var cmd command
		switch cmdCode {
		case versionCode:
			cmd, err = p.parseVersionCommand(r, segments)
		case createStoreCode:
			cmd, err = p.parseCreateStoreCommand(r, segments)
		case setCode:
			cmd, err = p.parseSetCommand(r, segments)
		case delCode:
			cmd, err = p.parseDelCommand(r, segments)
		default:
			err = errors.Wrapf(ErrCommandInvalid, "line #%d - unknown command", p.currentLine)
		}

		if err != nil {
			return p.totalSize, err
		}

		if err := cb(cmd); err != nil {
			return p.totalSize, err
		}

		p.totalCommands++
		p.totalSize += p.currentCmdSize
	}
}

func (p *parser) parseVersionCommand(r *bufio.Reader, segments int) (command, error) {
	if segments != 2 {
		return nil, errors.Wrapf(ErrCommandInvalid, "line #%d - ver expects 2 segments, got %d", p.currentLine, segments)
	}

	raw, _, err := p.resolveRespBlob(r)
	if err != nil {
		return nil, err
	}

	v, err := parseVersion(raw)
	if err != nil {
		return nil, err
	}

	return &versionCmd{version: v}, nil
}

func (p *parser) parseCreateStoreCommand(r *bufio.Reader, segments int) (command, error) {
	if segments != 2 {
		return nil, errors.Wrapf(ErrCommandInvalid, "line #%d - mkstore expects 2 segments, got %d", p.currentLine, segments)
	}

	name, _, err := p.resolveRespBlob(r)
	if err != nil {
		return nil, err
	}

	return &createStoreCmd{name: string(name)}, nil
}

// parseSetCommand - parses `set` command, the value itself is not kept,
// only where it lives in the file
func (p *parser) parseSetCommand(r *bufio.Reader, segments int) (command, error) {
	if segments != 4 {
		return nil, errors.Wrapf(ErrCommandInvalid, "line #%d - set expects 4 segments, got %d", p.currentLine, segments)
	}

	store, _, err := p.resolveRespBlob(r)
	if err != nil {
		return nil, err
	}

	key, _, err := p.resolveRespBlob(r)
	if err != nil {
		return nil, err
	}

	value, offset, err := p.resolveRespBlob(r)
	if err != nil {
		return nil, err
	}

	pos := position{
		offset: uint64(p.totalSize + offset),
		size:   uint64(len(value)),
	}

	return &setCmd{store: string(store), ent: newEntry(string(key), pos)}, nil
}

// parseDelCommand - parses delete entry command
func (p *parser) parseDelCommand(r *bufio.Reader, segments int) (command, error) {
	if segments != 3 {
		return nil, errors.Wrapf(ErrCommandInvalid, "line #%d - del expects 3 segments, got %d", p.currentLine, segments)
	}

	store, _, err := p.resolveRespBlob(r)
	if err != nil {
		return nil, err
	}

	key, _, err := p.resolveRespBlob(r)
	if err != nil {
		return nil, err
	}

	return &deleteCmd{store: string(store), key: string(key)}, nil
}

// resolveRespBlob - resolves a length prefixed blob and returns it with
// its offset relative to the start of the current command
func (p *parser) resolveRespBlob(r *bufio.Reader) ([]byte, int, error) {
	p.currentLine++
	strInfoLine, err := r.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, io.ErrUnexpectedEOF
		}

		return nil, 0, errors.Wrapf(
			ErrCommandInvalid,
			"could not resolve blob at line #%d: %v",
			p.currentLine, err)
	}

	p.currentCmdSize += len(strInfoLine)

	if len(strInfoLine) < 4 || strInfoLine[0] != '$' || strInfoLine[len(strInfoLine)-2] != '\r' {
		return nil, 0, errors.Wrapf(ErrCommandInvalid, "line #%d - %q is invalid", p.currentLine, string(strInfoLine))
	}

	blobLen, err := strconv.Atoi(string(strInfoLine[1 : len(strInfoLine)-2]))
	if err != nil || blobLen < 0 {
		return nil, 0, errors.Wrapf(ErrCommandInvalid, "line #%d - %q has invalid length", p.currentLine, string(strInfoLine))
	}

	offset := p.currentCmdSize

	blob := make([]byte, blobLen+2)
	n, err := io.ReadFull(r, blob)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, io.ErrUnexpectedEOF
		}

		return nil, 0, errors.Wrap(ErrCommandInvalid, err.Error())
	}

	p.currentCmdSize += n

	if blob[blobLen] != '\r' || blob[blobLen+1] != '\n' {
		return nil, 0, errors.Wrapf(ErrCommandInvalid, "line #%d - %q blob is not terminated", p.currentLine, string(strInfoLine))
	}

	return blob[:blobLen], offset, nil
}

func (p *parser) resolveRespArrayFromLine(r *bufio.Reader) (int, error) {
	p.currentLine++
	line, err := r.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.ErrUnexpectedEOF
		}

		return 0, errors.Wrapf(ErrSourceFileReadFailed, "could not parse array at line #%d: %s", p.currentLine, err.Error())
	}

	// should be \*\d+\r\n
	if len(line) < 4 || line[0] != '*' || line[len(line)-2] != '\r' {
		return 0, errors.Wrapf(
			ErrCommandInvalid,
			"line #%d - %q should actually start with *",
			p.currentLine, string(line))
	}

	n, err := strconv.Atoi(string(line[1 : len(line)-2]))
	if err != nil {
		return 0, errors.Wrapf(ErrCommandInvalid, "could not parse command size at line #%d %v", p.currentLine, err)
	}

	p.currentCmdSize += len(line)

	return n, nil
}

func (p *parser) resolveRespCommandCode(r *bufio.Reader) (commandCode, error) {
	token, err := p.resolveRespSimpleString(r)
	if err != nil {
		return invalidCode, err
	}

	switch token {
	case versionCommand:
		return versionCode, nil
	case createStoreCommand:
		return createStoreCode, nil
	case setCommand:
		return setCode, nil
	case delCommand:
		return delCode, nil
	}

	return invalidCode, errors.Wrapf(ErrCommandInvalid, "at line #%d command [%s] is unknown", p.currentLine, token)
}

func (p *parser) resolveRespSimpleString(r *bufio.Reader) (string, error) {
	p.currentLine++
	strLine, err := r.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}

		return "", errors.Wrap(ErrCommandInvalid, err.Error())
	}

	p.currentCmdSize += len(strLine)

	if len(strLine) < 4 || strLine[0] != '+' || strLine[len(strLine)-2] != '\r' {
		return "", errors.Wrapf(ErrCommandInvalid, "line #%d - %q is invalid", p.currentLine, string(strLine))
	}

	return string(strLine[1 : len(strLine)-2]), nil
}
