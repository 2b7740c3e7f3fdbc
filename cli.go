// This file is part of duskchain.
//
// duskchain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// duskchain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with duskchain. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"duskchain/core"
	"duskchain/core/chainerrors"
	"duskchain/network"
	"duskchain/wallet"
)

// CLI dispatches the duskchain subcommands. It holds nothing beyond a
// logger: every operation opens and closes its own chain database handle,
// matching how a short-lived CLI invocation is expected to behave.
type CLI struct {
	log *zap.Logger
}

const usage = `Usage:
  createblockchain -address ADDRESS     create a chain and reward ADDRESS with the genesis coinbase
  createwallet                          generate a key pair and save it to the node's wallet file
  listaddresses                         list every address in the node's wallet file
  printchain                            print every block, its proof of work, and its transactions
  getbalance -address ADDRESS           print the balance of ADDRESS
  send -from F -to T -amount N [-mine]  send N coins from F to T; -mine seals the block locally instead of gossiping it
  reindexutxo                           rebuild the unspent-output cache from the stored chain
  startnode [-miner ADDRESS]            join the gossip network; -miner enables mining, paid to ADDRESS

NODE_ID must be set in the environment for every subcommand.`

func (cli *CLI) printUsage() {
	fmt.Println(usage)
}

func (cli *CLI) validateArgs() {
	if len(os.Args) < 2 {
		cli.printUsage()
		os.Exit(1)
	}
}

func (cli *CLI) createBlockChain(address, nodeID string) error {
	if !core.ValidateAddress(address) {
		return errors.WithStack(chainerrors.ErrInvalidAddress)
	}

	chain, err := core.CreateBlockChain(address, nodeID, cli.log)
	if err != nil {
		return err
	}
	defer chain.Close()

	utxoSet := core.NewUTXOSet(chain.DB())
	if err := utxoSet.Reindex(chain); err != nil {
		return err
	}

	fmt.Println("done")
	return nil
}

func (cli *CLI) createWallet(nodeID string) error {
	wallets, err := wallet.Load(nodeID)
	if err != nil {
		return err
	}
	addr, err := wallets.CreateWallet()
	if err != nil {
		return err
	}
	if err := wallets.Save(); err != nil {
		return err
	}
	fmt.Printf("new address: %s\n", addr)
	return nil
}

func (cli *CLI) listAddresses(nodeID string) error {
	wallets, err := wallet.Load(nodeID)
	if err != nil {
		return err
	}
	for i, addr := range wallets.Addresses() {
		fmt.Printf("#%d: %s\n", i, addr)
	}
	return nil
}

// printChain walks the chain from tip to genesis, printing each block's
// header and every one of its transactions.
func (cli *CLI) printChain(nodeID string) error {
	chain, err := core.OpenBlockChain(nodeID, cli.log)
	if err != nil {
		return err
	}
	defer chain.Close()

	iter := chain.Iterator()
	for {
		block, err := iter.Next()
		if err != nil {
			return err
		}

		fmt.Printf("== block %d ==\n", block.Height)
		fmt.Printf("timestamp:  %d\n", block.Timestamp)
		fmt.Printf("prev hash:  %x\n", block.PrevBlockHash)
		fmt.Printf("hash:       %x\n", block.Hash)
		fmt.Printf("valid pow:  %t\n", block.Validate())
		for _, tx := range block.Transactions {
			fmt.Println(tx)
		}
		fmt.Println()

		if block.IsGenesis() {
			break
		}
	}
	return nil
}

func (cli *CLI) getBalance(address, nodeID string) error {
	if !core.ValidateAddress(address) {
		return errors.WithStack(chainerrors.ErrInvalidAddress)
	}

	chain, err := core.OpenBlockChain(nodeID, cli.log)
	if err != nil {
		return err
	}
	defer chain.Close()

	utxoSet := core.NewUTXOSet(chain.DB())
	pubKeyHash, err := core.PubKeyHashFromAddress(address)
	if err != nil {
		return err
	}
	outputs, err := utxoSet.FindUTXO(pubKeyHash)
	if err != nil {
		return err
	}

	var balance int64
	for _, out := range outputs {
		balance += out.Value
	}
	fmt.Printf("balance of %s: %d\n", address, balance)
	return nil
}

// send builds and signs a payment from from to to. With mineNow it seals
// the block locally; otherwise it gossips the transaction to the central
// node for a miner to pick up.
func (cli *CLI) send(from, to string, amount int64, nodeID string, mineNow bool) error {
	if !core.ValidateAddress(from) {
		return errors.WithStack(chainerrors.ErrInvalidAddress)
	}
	if !core.ValidateAddress(to) {
		return errors.WithStack(chainerrors.ErrInvalidAddress)
	}

	chain, err := core.OpenBlockChain(nodeID, cli.log)
	if err != nil {
		return err
	}
	defer chain.Close()
	utxoSet := core.NewUTXOSet(chain.DB())

	wallets, err := wallet.Load(nodeID)
	if err != nil {
		return err
	}
	sender, err := wallets.Get(from)
	if err != nil {
		return err
	}

	tx, err := core.NewUTXOTransaction(sender.PrivateKey, sender.PubKey, to, amount, utxoSet)
	if err != nil {
		return err
	}
	if err := chain.SignTransaction(tx, sender.PrivateKey); err != nil {
		return err
	}

	if mineNow {
		coinbase, err := core.NewCoinbaseTransaction(from)
		if err != nil {
			return err
		}
		block, err := chain.MineBlock([]*core.Transaction{coinbase, tx}, utxoSet)
		if err != nil {
			return err
		}
		if err := utxoSet.Update(block); err != nil {
			return err
		}
	} else {
		metrics := network.NewMetrics(prometheusDefaultRegisterer())
		node := network.NewNode(fmtLocalAddr(nodeID), chain, utxoSet, "", cli.log, metrics)
		node.BroadcastTx(tx)
	}

	fmt.Println("success")
	return nil
}

func (cli *CLI) reindexUTXO(nodeID string) error {
	chain, err := core.OpenBlockChain(nodeID, cli.log)
	if err != nil {
		return err
	}
	defer chain.Close()

	utxoSet := core.NewUTXOSet(chain.DB())
	if err := utxoSet.Reindex(chain); err != nil {
		return err
	}
	count, err := utxoSet.CountTransactions()
	if err != nil {
		return err
	}
	fmt.Printf("done: %d transactions in the utxo set\n", count)
	return nil
}

func (cli *CLI) startNode(nodeID, minerAddress string) error {
	if minerAddress != "" && !core.ValidateAddress(minerAddress) {
		return errors.WithStack(chainerrors.ErrInvalidAddress)
	}

	chain, err := core.OpenBlockChain(nodeID, cli.log)
	if err != nil {
		return err
	}
	utxoSet := core.NewUTXOSet(chain.DB())

	metrics := network.NewMetrics(prometheusDefaultRegisterer())
	node := network.NewNode(fmtLocalAddr(nodeID), chain, utxoSet, minerAddress, cli.log, metrics)
	if err := node.Start(); err != nil {
		return err
	}

	if cli.log != nil {
		cli.log.Info("node started", zap.String("addr", node.Addr()), zap.Bool("mining", minerAddress != ""))
	}

	waitForShutdown(node, chain)
	return nil
}

func fmtLocalAddr(nodeID string) string {
	return fmt.Sprintf("127.0.0.1:%s", nodeID)
}

func (cli *CLI) Run() error {
	cli.validateArgs()

	nodeID := os.Getenv("NODE_ID")
	if nodeID == "" {
		return errors.WithStack(chainerrors.ErrNodeIDMissing)
	}

	createChainCmd := flag.NewFlagSet("createblockchain", flag.ExitOnError)
	createChainAddr := createChainCmd.String("address", "", "address to receive the genesis coinbase reward")

	createWalletCmd := flag.NewFlagSet("createwallet", flag.ExitOnError)
	listAddressesCmd := flag.NewFlagSet("listaddresses", flag.ExitOnError)
	printChainCmd := flag.NewFlagSet("printchain", flag.ExitOnError)

	getBalanceCmd := flag.NewFlagSet("getbalance", flag.ExitOnError)
	getBalanceAddr := getBalanceCmd.String("address", "", "address to query")

	sendCmd := flag.NewFlagSet("send", flag.ExitOnError)
	sendFrom := sendCmd.String("from", "", "source address")
	sendTo := sendCmd.String("to", "", "destination address")
	sendAmount := sendCmd.Int64("amount", 0, "amount to send")
	sendMine := sendCmd.Bool("mine", false, "mine the block locally instead of gossiping the transaction")

	reindexUTXOCmd := flag.NewFlagSet("reindexutxo", flag.ExitOnError)

	startNodeCmd := flag.NewFlagSet("startnode", flag.ExitOnError)
	startNodeMiner := startNodeCmd.String("miner", "", "enable mining, paid to this address")

	switch os.Args[1] {
	case "createblockchain":
		if err := createChainCmd.Parse(os.Args[2:]); err != nil {
			return err
		}
	case "createwallet":
		if err := createWalletCmd.Parse(os.Args[2:]); err != nil {
			return err
		}
	case "listaddresses":
		if err := listAddressesCmd.Parse(os.Args[2:]); err != nil {
			return err
		}
	case "printchain":
		if err := printChainCmd.Parse(os.Args[2:]); err != nil {
			return err
		}
	case "getbalance":
		if err := getBalanceCmd.Parse(os.Args[2:]); err != nil {
			return err
		}
	case "send":
		if err := sendCmd.Parse(os.Args[2:]); err != nil {
			return err
		}
	case "reindexutxo":
		if err := reindexUTXOCmd.Parse(os.Args[2:]); err != nil {
			return err
		}
	case "startnode":
		if err := startNodeCmd.Parse(os.Args[2:]); err != nil {
			return err
		}
	default:
		cli.printUsage()
		os.Exit(1)
	}

	switch {
	case createChainCmd.Parsed():
		if *createChainAddr == "" {
			createChainCmd.Usage()
			os.Exit(1)
		}
		return cli.createBlockChain(*createChainAddr, nodeID)
	case createWalletCmd.Parsed():
		return cli.createWallet(nodeID)
	case listAddressesCmd.Parsed():
		return cli.listAddresses(nodeID)
	case printChainCmd.Parsed():
		return cli.printChain(nodeID)
	case getBalanceCmd.Parsed():
		if *getBalanceAddr == "" {
			getBalanceCmd.Usage()
			os.Exit(1)
		}
		return cli.getBalance(*getBalanceAddr, nodeID)
	case sendCmd.Parsed():
		if *sendFrom == "" || *sendTo == "" || *sendAmount <= 0 {
			sendCmd.Usage()
			os.Exit(1)
		}
		return cli.send(*sendFrom, *sendTo, *sendAmount, nodeID, *sendMine)
	case reindexUTXOCmd.Parsed():
		return cli.reindexUTXO(nodeID)
	case startNodeCmd.Parsed():
		return cli.startNode(nodeID, *startNodeMiner)
	}
	return nil
}
