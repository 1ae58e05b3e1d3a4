package model

type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkSepolia Network = "sepolia"
	NetworkHolesky Network = "holesky"
	NetworkLocal   Network = "local"
)

func (n Network) String() string {
	return string(n)
}
