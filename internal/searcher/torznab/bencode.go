package torznab

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// extractInfoHashFromTorrent computes the BitTorrent infohash (SHA1 over
// the bencoded "info" dict) of a .torrent file's raw bytes, for indexers
// that expose only a download URL. Grounded on the teacher's
// torrent_infohash.go bencode walker.
func extractInfoHashFromTorrent(payload []byte) (string, error) {
	start, end, found, err := locateInfoDict(payload)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("bencode: no info dict in torrent file")
	}
	sum := sha1.Sum(payload[start:end])
	return hex.EncodeToString(sum[:]), nil
}

// locateInfoDict walks the top-level bencoded dictionary looking for the
// "info" key and returns the byte range of its (still-encoded) value.
func locateInfoDict(data []byte) (start, end int, found bool, err error) {
	if len(data) == 0 || data[0] != 'd' {
		return 0, 0, false, fmt.Errorf("bencode: expected top-level dict")
	}
	pos := 1
	for {
		if pos >= len(data) {
			return 0, 0, false, fmt.Errorf("bencode: unexpected eof in top-level dict")
		}
		if data[pos] == 'e' {
			return start, end, found, nil
		}
		key, afterKey, err := readBencodeString(data, pos)
		if err != nil {
			return 0, 0, false, err
		}
		valueStart := afterKey
		valueEnd, err := skipBencodeValue(data, afterKey)
		if err != nil {
			return 0, 0, false, err
		}
		if !found && string(key) == "info" {
			start, end, found = valueStart, valueEnd, true
		}
		pos = valueEnd
	}
}

func readBencodeString(data []byte, pos int) ([]byte, int, error) {
	length := 0
	i := pos
	for {
		if i >= len(data) {
			return nil, 0, fmt.Errorf("bencode: unexpected eof reading string length")
		}
		b := data[i]
		if b == ':' {
			break
		}
		if b < '0' || b > '9' {
			return nil, 0, fmt.Errorf("bencode: malformed string length")
		}
		length = length*10 + int(b-'0')
		i++
	}
	i++ // skip ':'
	if length < 0 || i+length > len(data) {
		return nil, 0, fmt.Errorf("bencode: string out of bounds")
	}
	return data[i : i+length], i + length, nil
}

func skipBencodeValue(data []byte, pos int) (int, error) {
	if pos >= len(data) {
		return 0, fmt.Errorf("bencode: unexpected eof")
	}
	switch data[pos] {
	case 'i':
		i := pos + 1
		if i < len(data) && data[i] == '-' {
			i++
		}
		digits := false
		for {
			if i >= len(data) {
				return 0, fmt.Errorf("bencode: unexpected eof in integer")
			}
			if data[i] == 'e' {
				if !digits {
					return 0, fmt.Errorf("bencode: empty integer")
				}
				return i + 1, nil
			}
			if data[i] < '0' || data[i] > '9' {
				return 0, fmt.Errorf("bencode: malformed integer")
			}
			digits = true
			i++
		}
	case 'l':
		i := pos + 1
		for {
			if i >= len(data) {
				return 0, fmt.Errorf("bencode: unexpected eof in list")
			}
			if data[i] == 'e' {
				return i + 1, nil
			}
			next, err := skipBencodeValue(data, i)
			if err != nil {
				return 0, err
			}
			i = next
		}
	case 'd':
		i := pos + 1
		for {
			if i >= len(data) {
				return 0, fmt.Errorf("bencode: unexpected eof in dict")
			}
			if data[i] == 'e' {
				return i + 1, nil
			}
			_, afterKey, err := readBencodeString(data, i)
			if err != nil {
				return 0, err
			}
			valueEnd, err := skipBencodeValue(data, afterKey)
			if err != nil {
				return 0, err
			}
			i = valueEnd
		}
	default:
		_, next, err := readBencodeString(data, pos)
		return next, err
	}
}
