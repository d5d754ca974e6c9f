package discovery

import (
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/dns/dnsmessage"

	"github.com/mouseshare/mouseshare/internal/peer"
)

// parsedRecord is the flattened result of reading one instance's SRV/TXT/A
// triple out of an mDNS response. port/host come from SRV+A; id/name/width/
// height come from TXT.
type parsedRecord struct {
	id     peer.ID
	name   string
	host   string
	port   int
	width  int
	height int
}

// parseAnswers walks the answer section of an mDNS response looking for one
// instance's TXT and SRV records, and an accompanying A record for the host
// target. If a packet carries several instances, the last TXT and SRV
// records seen win; our own announcements only ever carry one.
func parseAnswers(p *dnsmessage.Parser) (*parsedRecord, error) {
	var txt map[string]string
	var srvTarget string
	var srvPort int
	hostAddrs := map[string]string{}

	for {
		h, err := p.AnswerHeader()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch h.Type {
		case dnsmessage.TypeTXT:
			res, err := p.TXTResource()
			if err != nil {
				return nil, err
			}
			txt = parseTXT(res.TXT)
		case dnsmessage.TypeSRV:
			res, err := p.SRVResource()
			if err != nil {
				return nil, err
			}
			srvTarget = res.Target.String()
			srvPort = int(res.Port)
		case dnsmessage.TypeA:
			res, err := p.AResource()
			if err != nil {
				return nil, err
			}
			ip := res.A
			hostAddrs[h.Name.String()] = strconv.Itoa(int(ip[0])) + "." + strconv.Itoa(int(ip[1])) + "." + strconv.Itoa(int(ip[2])) + "." + strconv.Itoa(int(ip[3]))
		default:
			if err := p.SkipAnswer(); err != nil {
				return nil, err
			}
		}
	}

	if txt == nil {
		return nil, nil
	}

	id, err := peer.ParseID(txt["id"])
	if err != nil {
		return nil, nil // not one of ours / malformed id, not an error worth surfacing
	}

	host := hostAddrs[srvTarget]
	if host == "" {
		// Fall back to whatever A record we did see; a single-instance
		// announcement only ever carries one.
		for _, addr := range hostAddrs {
			host = addr
			break
		}
	}

	width, _ := strconv.Atoi(txt["width"])
	height, _ := strconv.Atoi(txt["height"])
	port := srvPort
	if port == 0 {
		port = 24801
	}

	return &parsedRecord{
		id:     id,
		name:   txt["name"],
		host:   host,
		port:   port,
		width:  width,
		height: height,
	}, nil
}

func parseTXT(entries []string) map[string]string {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}
