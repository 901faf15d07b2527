/*
txscript 包实现了名字币输出脚本的分析：解析、分类、标准性、压缩、地址与描述符。

脚本是不透明的 []byte。包内所有函数都以脚本为第一个参数，对任意输入（包括无法解析的脚本）都不会 panic，
也不会修改传入的切片。

# 脚本分类

Solver 把脚本归入下列模板之一，并返回模板中的关键数据：

  - 空数据：OP_RETURN 后面只有推送
  - 多签：OP_m <公钥>... OP_n OP_CHECKMULTISIG
  - 公钥：<公钥> OP_CHECKSIG
  - 公钥哈希：OP_DUP OP_HASH160 <20 字节> OP_EQUALVERIFY OP_CHECKSIG
  - 脚本哈希：OP_HASH160 <20 字节> OP_EQUAL
  - 见证程序：版本 0 的 20 字节或 32 字节程序，以及其他版本的未知见证程序

名字脚本（OP_NAME_NEW、OP_NAME_FIRSTUPDATE、OP_NAME_UPDATE 前缀）按其地址部分分类。

# 执行

脚本的执行不在本包内实现。Verifier 接口描述外部执行引擎，NewEngineVerifier 返回基于 btcd 执行引擎的实现，
其错误被转换为本包的 ErrorCode。

# 错误

该包返回的错误类型为 txscript.Error。
调用者可以通过 ErrorCode 字段、IsErrorCode 或 errors.Is 判断具体的错误。
*/
package txscript
