package discovery

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
)

// macsPath is the metadata path listing the MACs of attached interfaces.
const macsPath = "network/interfaces/macs/"

// maxMetadataValue caps the size of a single metadata value.
const maxMetadataValue = 64 * 1024

// MetadataAPI is the subset of the instance metadata client used by
// discovery. *imds.Client satisfies it.
type MetadataAPI interface {
	GetInstanceIdentityDocument(ctx context.Context, params *imds.GetInstanceIdentityDocumentInput, optFns ...func(*imds.Options)) (*imds.GetInstanceIdentityDocumentOutput, error)
	GetMetadata(ctx context.Context, params *imds.GetMetadataInput, optFns ...func(*imds.Options)) (*imds.GetMetadataOutput, error)
}

// InterfaceInfo describes one attached network interface as reported by the
// metadata service.
type InterfaceInfo struct {
	MAC         string       `yaml:"mac"`
	ENIID       string       `yaml:"eni_id"`
	VPCID       string       `yaml:"vpc_id"`
	Subnet      netip.Prefix `yaml:"subnet"`
	DeviceIndex string       `yaml:"device_index"`
}

// Identity is the instance identity acquired at bootstrap.
type Identity struct {
	InstanceID string                   `yaml:"instance_id"`
	Region     string                   `yaml:"region"`
	Interfaces map[string]InterfaceInfo `yaml:"interfaces"`
}

// Interface returns the interface with the given MAC.
func (id *Identity) Interface(mac string) (InterfaceInfo, bool) {
	info, ok := id.Interfaces[strings.ToLower(mac)]
	return info, ok
}

// VPCIDs returns the distinct VPCs of all interfaces, sorted.
func (id *Identity) VPCIDs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, info := range id.Interfaces {
		if info.VPCID == "" || seen[info.VPCID] {
			continue
		}
		seen[info.VPCID] = true
		out = append(out, info.VPCID)
	}
	sort.Strings(out)
	return out
}

// ReadIdentity reads the instance identity document and every attached
// interface from the metadata service. Any missing or malformed value is an
// error.
func ReadIdentity(ctx context.Context, md MetadataAPI) (*Identity, error) {
	doc, err := md.GetInstanceIdentityDocument(ctx, &imds.GetInstanceIdentityDocumentInput{})
	if err != nil {
		return nil, fmt.Errorf("discovery: read instance identity: %w", err)
	}

	id := &Identity{
		InstanceID: doc.InstanceID,
		Region:     doc.Region,
		Interfaces: make(map[string]InterfaceInfo),
	}

	list, err := getMetadata(ctx, md, macsPath)
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(list, "\n") {
		mac := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(line), "/"))
		if mac == "" {
			continue
		}
		info, err := readInterface(ctx, md, mac)
		if err != nil {
			return nil, err
		}
		id.Interfaces[mac] = info
	}
	if len(id.Interfaces) == 0 {
		return nil, fmt.Errorf("discovery: metadata lists no network interfaces")
	}
	return id, nil
}

func readInterface(ctx context.Context, md MetadataAPI, mac string) (InterfaceInfo, error) {
	base := macsPath + mac + "/"
	info := InterfaceInfo{MAC: mac}

	var err error
	if info.ENIID, err = getMetadata(ctx, md, base+"interface-id"); err != nil {
		return InterfaceInfo{}, err
	}
	if info.VPCID, err = getMetadata(ctx, md, base+"vpc-id"); err != nil {
		return InterfaceInfo{}, err
	}
	if info.DeviceIndex, err = getMetadata(ctx, md, base+"device-number"); err != nil {
		return InterfaceInfo{}, err
	}
	block, err := getMetadata(ctx, md, base+"subnet-ipv4-cidr-block")
	if err != nil {
		return InterfaceInfo{}, err
	}
	if info.Subnet, err = netip.ParsePrefix(block); err != nil {
		return InterfaceInfo{}, fmt.Errorf("discovery: interface %s: parse subnet %q: %w", mac, block, err)
	}
	info.Subnet = info.Subnet.Masked()
	return info, nil
}

func getMetadata(ctx context.Context, md MetadataAPI, path string) (string, error) {
	out, err := md.GetMetadata(ctx, &imds.GetMetadataInput{Path: path})
	if err != nil {
		return "", fmt.Errorf("discovery: get metadata %s: %w", path, err)
	}
	defer out.Content.Close()

	body, err := io.ReadAll(io.LimitReader(out.Content, maxMetadataValue))
	if err != nil {
		return "", fmt.Errorf("discovery: read metadata %s: %w", path, err)
	}
	value := strings.TrimSpace(string(body))
	if value == "" {
		return "", fmt.Errorf("discovery: metadata %s is empty", path)
	}
	return value, nil
}
